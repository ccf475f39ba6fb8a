package notify

import (
	"fmt"
	"html"

	"github.com/averlane/client-portal/internal/stage"
)

// Message bodies are small enough that sprintf over escaped values beats a
// template file; every client-supplied string goes through html.EscapeString.

// trackingPixel returns the 1x1 image tag referencing the open-confirmation
// endpoint.  The .gif suffix is cosmetic; the server strips it.
func trackingPixel(baseURL, trackingID string) string {
	return fmt.Sprintf(`<img src="%s/track/%s.gif" width="1" height="1" alt="" style="display:none">`,
		baseURL, trackingID)
}

func statusUpdateHTML(clientName string, st stage.Stage, note *string, pixel string) string {
	noteHTML := ""
	if note != nil && *note != "" {
		noteHTML = fmt.Sprintf(`<p><strong>Note from your advisor:</strong> %s</p>`, html.EscapeString(*note))
	}
	return fmt.Sprintf(`<html><body>
<p>Hi %s,</p>
<p>Your application has moved to a new stage:</p>
<h2>Stage %d of %d: %s</h2>
<p>%s</p>
%s
<p>Your application is %d%% complete.</p>
<p>— The Averlane Team</p>
%s
</body></html>`,
		html.EscapeString(clientName),
		st.ID, stage.Total, html.EscapeString(st.Name),
		html.EscapeString(st.Description),
		noteHTML,
		stage.Progress(st.ID),
		pixel)
}

func statusUpdateSubject(st stage.Stage) string {
	return fmt.Sprintf("Application update: %s (stage %d of %d)", st.Name, st.ID, stage.Total)
}

func statusUpdateSMS(clientName string, st stage.Stage, note *string) string {
	body := fmt.Sprintf("Hi %s, your application moved to stage %d of %d: %s.",
		clientName, st.ID, stage.Total, st.Name)
	if note != nil && *note != "" {
		body += " Note: " + *note
	}
	return body
}

func welcomeHTML(clientName string, pixel string) string {
	return fmt.Sprintf(`<html><body>
<p>Hi %s,</p>
<p>Welcome aboard. Your application file has been opened and you are at
stage 1 of %d: Initial Consultation.</p>
<p>We will email you every time your application moves forward.</p>
<p>— The Averlane Team</p>
%s
</body></html>`,
		html.EscapeString(clientName), stage.Total, pixel)
}

const welcomeSubject = "Welcome to Averlane"

func invitationHTML(inviteeName, inviterName, signupURL string, pixel string) string {
	return fmt.Sprintf(`<html><body>
<p>Hi %s,</p>
<p>%s has invited you to join the Averlane operator portal.</p>
<p><a href="%s">Accept your invitation</a> to set up your account.
The link is valid for 7 days and can be used once.</p>
%s
</body></html>`,
		html.EscapeString(inviteeName), html.EscapeString(inviterName), signupURL, pixel)
}

const invitationSubject = "You are invited to the Averlane portal"
