package rbac

// Role constants
const (
	RoleOwner      = "owner"
	RoleManager    = "manager"
	RoleAdvertiser = "advertiser"
)

// Permission constants
const (
	PermCreateDeal  = "create_deal"
	PermSubmitDraft = "submit_draft"
	PermReviewDraft = "review_draft"
	PermViewDeal    = "view_deal"
	PermSetWallet   = "set_wallet"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleOwner: {
		PermSubmitDraft, PermViewDeal, PermSetWallet,
	},
	RoleManager: {
		PermSubmitDraft, PermViewDeal,
		// Manager CANNOT: PermSetWallet
	},
	RoleAdvertiser: {
		PermCreateDeal, PermReviewDraft, PermViewDeal,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsFinancialOperation checks if permission is financial (owner-only).
func IsFinancialOperation(permission string) bool {
	return permission == PermSetWallet
}
