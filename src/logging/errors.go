package logging

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// IsRateLimit reports whether err is a Discord rate-limit response.
func IsRateLimit(err error) bool {
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Response != nil &&
		rest.Response.StatusCode == http.StatusTooManyRequests
}

// IsForbidden reports whether err is a Discord permission failure, such as a
// user who blocks DMs (error code 50007).
func IsForbidden(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
		return true
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden
}
