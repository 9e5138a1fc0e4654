package authz

import "fmt"

var authErrorMessages = map[string]string{
	"auth/popup-closed-by-user":      "The sign-in popup was closed before completing. Please try again.",
	"auth/popup-blocked":             "The sign-in popup was blocked by the browser. Please allow popups for this site.",
	"auth/invalid-phone-number":      "The phone number is not valid. Please check it and try again.",
	"auth/too-many-requests":         "Too many attempts. Please wait a moment and try again.",
	"auth/invalid-verification-code": "The verification code is incorrect.",
	"auth/code-expired":              "The verification code has expired. Please request a new one.",
	"auth/requires-recent-login":     "Please sign in again to complete this action.",
	"auth/id-token-expired":          "Your session has expired. Please sign in again.",
}

// DescribeAuthError maps an authentication provider error code to a message
// suitable for end users.
func DescribeAuthError(code string) string {
	if msg, ok := authErrorMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Authentication failed (%s). Please try again.", code)
}

// IsKnownAuthError reports whether code has a dedicated message.
func IsKnownAuthError(code string) bool {
	_, ok := authErrorMessages[code]
	return ok
}
