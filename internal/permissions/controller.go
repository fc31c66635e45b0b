package permissions

import (
	"github.com/sirupsen/logrus"
)

// AccessType represents the access level of a user
type AccessType int

const (
	// Guest represents a user without VPN access
	Guest AccessType = iota
	// Member represents an approved VPN user
	Member
	// Admin represents admin access
	Admin
)

// MemberDirectory answers whether a Telegram user is an approved member
type MemberDirectory interface {
	IsApprovedMember(tgID int64) bool
}

// PermissionController manages user permissions
type PermissionController struct {
	adminIDs map[int64]bool
	members  MemberDirectory
	logger   *logrus.Logger
}

// NewController creates a new permission controller
func NewController(adminIDs []int64, members MemberDirectory, logger *logrus.Logger) *PermissionController {
	adminIDMap := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		adminIDMap[id] = true
	}

	logger.Infof("Initialized permission controller with %d admins", len(adminIDs))

	return &PermissionController{
		adminIDs: adminIDMap,
		members:  members,
		logger:   logger,
	}
}

// GetAccessType determines the access type of a user
func (p *PermissionController) GetAccessType(userID int64) AccessType {
	if p.IsAdmin(userID) {
		return Admin
	}

	if p.IsMember(userID) {
		return Member
	}

	return Guest
}

// IsAdmin checks if a user is an admin
func (p *PermissionController) IsAdmin(userID int64) bool {
	return p.adminIDs[userID]
}

// IsMember checks if a user is an approved member
func (p *PermissionController) IsMember(userID int64) bool {
	if p.members == nil {
		return false
	}
	isMember := p.members.IsApprovedMember(userID)
	p.logger.Debugf("Checking if user %d is a member: %v", userID, isMember)
	return isMember
}
