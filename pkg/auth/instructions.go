package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowLoginGuide explains how to get catalog credentials and where the
// tool looks for them.
func ShowLoginGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "🛰  SPACE-TRACK LOGIN GUIDE")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "The catalog only answers logged-in sessions. You need a free account:")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📝 STEP 1: Register")
	fmt.Fprintln(w, "   - Go to https://www.space-track.org/auth/createAccount")
	fmt.Fprintln(w, "   - Accept the user agreement and confirm your e-mail")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔑 STEP 2: Save the login")
	fmt.Fprintln(w, "   spacetrack auth login")
	fmt.Fprintln(w, "   The password goes to the system keychain, or to an encrypted")
	fmt.Fprintln(w, "   file when no keychain is available.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🌱 OR: use the environment")
	fmt.Fprintf(w, "   export %s=you@example.com\n", envIdentity)
	fmt.Fprintf(w, "   export %s=...\n", envPassword)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "⚠️  LIMITS:")
	fmt.Fprintln(w, "   • 30 requests per minute and 300 per hour per account")
	fmt.Fprintln(w, "   • Repeated violations suspend the account")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
