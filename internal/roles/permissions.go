package roles

// Permission is a capability string in resource:verb form. It is matched
// exactly against a role's permission set.
type Permission string

// Catalog permissions.
const (
	PermCatalogRead = Permission("catalog:read")

	PermCategoriesCreate = Permission("categories:create")
	PermCategoriesUpdate = Permission("categories:update")
	PermCategoriesDelete = Permission("categories:delete")

	PermBrandsCreate = Permission("brands:create")
	PermBrandsUpdate = Permission("brands:update")
	PermBrandsDelete = Permission("brands:delete")

	PermProductsCreate = Permission("products:create")
	PermProductsUpdate = Permission("products:update")
	PermProductsDelete = Permission("products:delete")
)

// Customer permissions.
const (
	PermFavoritesRead  = Permission("favorites:read")
	PermFavoritesWrite = Permission("favorites:write")
	PermOrdersCreate   = Permission("orders:create")
	PermProfileRead    = Permission("profile:read")
)

// Back office permissions.
const (
	PermUsersRead   = Permission("users:read")
	PermUsersCreate = Permission("users:create")
	PermUsersUpdate = Permission("users:update")
	PermUsersDelete = Permission("users:delete")
	PermRolesRead   = Permission("roles:read")
	PermOrdersRead  = Permission("orders:read")
	PermJobsRead    = Permission("jobs:read")
)

func customerScopes() []Permission {
	return []Permission{
		PermCatalogRead,
		PermFavoritesRead,
		PermFavoritesWrite,
		PermOrdersCreate,
		PermProfileRead,
	}
}

func adminScopes() []Permission {
	return append(customerScopes(),
		PermCategoriesCreate,
		PermCategoriesUpdate,
		PermCategoriesDelete,
		PermBrandsCreate,
		PermBrandsUpdate,
		PermBrandsDelete,
		PermProductsCreate,
		PermProductsUpdate,
		PermProductsDelete,
		PermUsersRead,
		PermRolesRead,
		PermOrdersRead,
		PermJobsRead,
	)
}

func superAdminScopes() []Permission {
	return append(adminScopes(),
		PermUsersCreate,
		PermUsersUpdate,
		PermUsersDelete,
	)
}
