package commands

// TelegramCommands contains all commands for the Telegram bot
const (
	// Main commands
	Start  = "/start"
	Cancel = "Cancel"

	// Navigation commands
	ReturnToMainMenu = "Return to Main Menu"

	// Administrator commands
	PendingRequests = "Pending Requests"
	Members         = "Members"
	NetworkUsage    = "Network Usage"

	// Request actions
	Approve = "Approve"
	Reject  = "Reject"

	// Member commands
	ConnectionInfo = "Connection Info"
	MyTraffic      = "My Traffic"

	// Guest commands
	RequestAccess = "Request Access"
	About         = "About"
	Help          = "Help"

	// Member action commands
	ShowLink      = "Show Link"
	EnableMember  = "Enable"
	DisableMember = "Disable"
	Delete        = "Delete"

	// Confirmation commands
	Confirm = "Confirm"
)
