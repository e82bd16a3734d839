package logging

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func restErr(status, code int) error {
	e := &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
	}
	if code != 0 {
		e.Message = &discordgo.APIErrorMessage{Code: code}
	}
	return e
}

func TestIsRateLimit(t *testing.T) {
	assert.True(t, IsRateLimit(restErr(http.StatusTooManyRequests, 0)))
	assert.True(t, IsRateLimit(fmt.Errorf("send dm: %w", restErr(http.StatusTooManyRequests, 0))))
	assert.False(t, IsRateLimit(restErr(http.StatusForbidden, 0)))
	// Plain errors never classify, whatever their text says.
	assert.False(t, IsRateLimit(errors.New("rate_limit 429")))
	assert.False(t, IsRateLimit(nil))
}

func TestIsForbidden(t *testing.T) {
	assert.True(t, IsForbidden(restErr(http.StatusForbidden, 0)))
	assert.True(t, IsForbidden(restErr(http.StatusBadRequest, discordgo.ErrCodeCannotSendMessagesToThisUser)))
	assert.True(t, IsForbidden(fmt.Errorf("open dm: %w", restErr(http.StatusForbidden, 0))))
	assert.False(t, IsForbidden(restErr(http.StatusTooManyRequests, 0)))
	assert.False(t, IsForbidden(errors.New("Forbidden 50007")))
	assert.False(t, IsForbidden(nil))
}
