package utils

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// Permission levels
const (
	DeveloperPermission = "developer"
	AdminPermission     = "admin"
	GuestPermission     = "guest"
)

// CheckPermission returns the highest permission level of a member. Members
// with the Administrator permission count as admins even without a configured role.
func CheckPermission(member *discordgo.Member, adminRoleIDs, developerUserIDs []string) string {
	if member == nil {
		return GuestPermission
	}

	if member.User != nil && slices.Contains(developerUserIDs, member.User.ID) {
		return DeveloperPermission
	}

	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return AdminPermission
	}

	for _, roleID := range member.Roles {
		if slices.Contains(adminRoleIDs, roleID) {
			return AdminPermission
		}
	}

	return GuestPermission
}

// IsAdmin reports whether the level may manage slots.
func IsAdmin(level string) bool {
	return level == AdminPermission || level == DeveloperPermission
}
