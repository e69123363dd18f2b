package oauth

import (
	"fmt"
	"strconv"

	"github.com/dmitrymomot/oauthflow/pkg/sanitizer"
)

// The callback answers with a self-contained page because the provider
// redirect lands in a browser window, not an API client. Bind flows run in a
// popup and report back to the opener; login flows store the session token
// and leave.

const pageShell = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<p>%s</p>
<script>%s</script>
</body>
</html>`

func (m *Module) bindResultPage(provider string) string {
	script := fmt.Sprintf(`if (window.opener) {
  window.opener.postMessage({ type: "oauth-result", success: true, provider: %s }, window.location.origin);
}
window.close();`, strconv.Quote(provider))
	return fmt.Sprintf(pageShell, "Account connected", "Account connected. You can close this window.", script)
}

func (m *Module) loginResultPage(sessionToken string) string {
	script := fmt.Sprintf(`localStorage.setItem("session_token", %s);
window.location.replace(%s);`, strconv.Quote(sessionToken), strconv.Quote(m.cfg.LoginRedirect))
	return fmt.Sprintf(pageShell, "Signed in", "Signed in. Redirecting...", script)
}

func (m *Module) failurePage(message string) string {
	msg := sanitizer.ScrubMessage(message)
	script := `if (window.opener) {
  window.opener.postMessage({ type: "oauth-result", success: false }, window.location.origin);
}`
	return fmt.Sprintf(pageShell, "Sign-in failed", "Sign-in failed: "+msg, script)
}
