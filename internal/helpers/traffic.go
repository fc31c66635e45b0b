package helpers

import (
	"fmt"
	"strings"

	"xui-vpn-bot/internal/constants"
	"xui-vpn-bot/internal/models"
)

// FormatGB renders a byte count as gigabytes with two decimals
func FormatGB(bytes int64) string {
	return fmt.Sprintf("%.2f", float64(bytes)/constants.BytesInGB)
}

// FormatUsageReport formats a traffic report over all approved users
func FormatUsageReport(users []models.User) string {
	var sb strings.Builder
	sb.WriteString("<b>Network Usage Report:</b>\n")
	sb.WriteString("<pre>\n")
	sb.WriteString("User              | ↓ (GB) | ↑ (GB)\n")
	sb.WriteString("------------------|--------|--------\n")

	var totalUp, totalDown int64
	for _, user := range users {
		totalUp += user.Up
		totalDown += user.Down
		sb.WriteString(FormatTableLine(DisplayName(&user), user.Down, user.Up))
	}

	sb.WriteString("-----------\n")
	sb.WriteString(FormatTableLine("Total:", totalDown, totalUp))
	sb.WriteString("</pre>")

	return sb.String()
}

// FormatTableLine formats a single line of the traffic table
func FormatTableLine(name string, downBytes, upBytes int64) string {
	if len(name) > 17 {
		name = name[:17]
	}
	return fmt.Sprintf("%-17s | %6s | %6s\n", name, FormatGB(downBytes), FormatGB(upBytes))
}

// DisplayName picks the most readable identifier for a user
func DisplayName(user *models.User) string {
	if user.Username != "" {
		return "@" + user.Username
	}
	if user.FullName != "" {
		return user.FullName
	}
	return user.Email
}
