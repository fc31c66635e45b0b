package helpers

import (
	"strconv"

	"xui-vpn-bot/internal/constants"
)

// ClientEmail derives the panel client email for a Telegram user. The value
// is not a real email address, it is the unique key the panel dedups on.
func ClientEmail(tgID int64) string {
	return constants.EmailPrefix + strconv.FormatInt(tgID, 10)
}
