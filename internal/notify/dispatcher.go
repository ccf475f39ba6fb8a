package notify

import (
	"context"
	"log"
	"sync"

	"github.com/averlane/client-portal/internal/config"
	"github.com/averlane/client-portal/internal/model"
	"github.com/averlane/client-portal/internal/stage"
)

// TrackingCreator persists the tracking record for an outbound email.  The
// record is created before the provider call and regardless of whether the
// send later succeeds, so an operator can see "sent but never opened" and
// "send failed" as distinct situations.
type TrackingCreator interface {
	Create(ctx context.Context, clientID *uint64, emailType, subject string) (model.TrackingRecord, error)
}

// Dispatcher fans a status-change event out to the email and SMS channels.
// A nil sender means that channel is unconfigured and is skipped, never
// failed.  Dispatch methods return only data; they do not return errors
// and they do not panic, because by the time they run the stage change is
// already durably committed.
type Dispatcher struct {
	Email    EmailSender // nil when the email channel is unconfigured
	SMS      SMSSender   // nil when the SMS channel is unconfigured
	Tracking TrackingCreator
	From     string
	BaseURL  string
}

// New wires a dispatcher from configuration.  Channels without credentials
// get nil senders.
func New(cfg config.Config, tracking TrackingCreator) *Dispatcher {
	d := &Dispatcher{
		Tracking: tracking,
		From:     cfg.EmailFrom,
		BaseURL:  cfg.BaseURL,
	}
	if cfg.EmailConfigured() {
		d.Email = NewResendClient(cfg.EmailAPIKey, cfg.EmailAPIURL)
	}
	if cfg.SMSConfigured() {
		d.SMS = NewTwilioClient(cfg.SMSAccountSID, cfg.SMSAuthToken, cfg.SMSFrom, cfg.SMSAPIBase)
	}
	return d
}

// DispatchStatusUpdate attempts both channels concurrently and joins them
// before returning, so the caller can report each outcome.  The goroutines
// write disjoint fields of the shared Result.
func (d *Dispatcher) DispatchStatusUpdate(ctx context.Context, cl model.Client, st stage.Stage, note *string) Result {
	var res Result
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		d.statusEmail(ctx, cl, st, note, &res)
	}()
	go func() {
		defer wg.Done()
		d.statusSMS(ctx, cl, st, note, &res)
	}()

	wg.Wait()
	return res
}

func (d *Dispatcher) statusEmail(ctx context.Context, cl model.Client, st stage.Stage, note *string, res *Result) {
	if d.Email == nil {
		return // channel unconfigured: skipped, not an error
	}
	subject := statusUpdateSubject(st)
	pixel := d.newPixel(ctx, &cl.ID, model.EmailTypeStatusUpdate, subject)
	sr := d.Email.Send(ctx, EmailMessage{
		From:    d.From,
		To:      cl.Email,
		Subject: subject,
		HTML:    statusUpdateHTML(cl.Name, st, note, pixel),
	})
	if !sr.OK() {
		log.Printf("notify: status email to client %d failed: %v", cl.ID, sr.Err)
		res.EmailError = strptr(sr.Err.Message)
		if sr.Err.Detail != "" {
			res.EmailDebug = strptr(sr.Err.Detail)
		}
		return
	}
	res.EmailSent = true
}

func (d *Dispatcher) statusSMS(ctx context.Context, cl model.Client, st stage.Stage, note *string, res *Result) {
	if cl.Phone == nil || *cl.Phone == "" {
		res.SMSError = strptr("sms skipped: client has no phone number on file")
		return
	}
	if d.SMS == nil {
		res.SMSError = strptr("sms skipped: channel not configured")
		return
	}
	sr := d.SMS.Send(ctx, SMSMessage{
		To:   NormalizePhone(*cl.Phone),
		Body: statusUpdateSMS(cl.Name, st, note),
	})
	if !sr.OK() {
		log.Printf("notify: status sms to client %d failed: %v", cl.ID, sr.Err)
		res.SMSError = strptr(sr.Err.Message)
		if sr.Err.Detail != "" {
			res.SMSDebug = strptr(sr.Err.Detail)
		}
		return
	}
	res.SMSSent = true
}

// SendWelcome emails a newly created client.  Email channel only; the
// caller treats any failure as log-worthy, never fatal to the create.
func (d *Dispatcher) SendWelcome(ctx context.Context, cl model.Client) Result {
	var res Result
	if d.Email == nil {
		return res
	}
	pixel := d.newPixel(ctx, &cl.ID, model.EmailTypeWelcome, welcomeSubject)
	sr := d.Email.Send(ctx, EmailMessage{
		From:    d.From,
		To:      cl.Email,
		Subject: welcomeSubject,
		HTML:    welcomeHTML(cl.Name, pixel),
	})
	if !sr.OK() {
		log.Printf("notify: welcome email to client %d failed: %v", cl.ID, sr.Err)
		res.EmailError = strptr(sr.Err.Message)
		if sr.Err.Detail != "" {
			res.EmailDebug = strptr(sr.Err.Detail)
		}
		return res
	}
	res.EmailSent = true
	return res
}

// SendInvitation emails the signup link for a freshly issued invitation.
func (d *Dispatcher) SendInvitation(ctx context.Context, inv model.Invitation, inviterName string) Result {
	var res Result
	if d.Email == nil {
		return res
	}
	signupURL := d.BaseURL + "/signup?token=" + inv.Token
	pixel := d.newPixel(ctx, nil, model.EmailTypeAdminInvitation, invitationSubject)
	sr := d.Email.Send(ctx, EmailMessage{
		From:    d.From,
		To:      inv.Email,
		Subject: invitationSubject,
		HTML:    invitationHTML(inv.Name, inviterName, signupURL, pixel),
	})
	if !sr.OK() {
		log.Printf("notify: invitation email to %s failed: %v", inv.Email, sr.Err)
		res.EmailError = strptr(sr.Err.Message)
		if sr.Err.Detail != "" {
			res.EmailDebug = strptr(sr.Err.Detail)
		}
		return res
	}
	res.EmailSent = true
	return res
}

// newPixel creates the tracking record and returns the pixel tag for the
// message body.  A tracking failure downgrades to an untracked email
// rather than blocking the send.
func (d *Dispatcher) newPixel(ctx context.Context, clientID *uint64, emailType, subject string) string {
	if d.Tracking == nil {
		return ""
	}
	rec, err := d.Tracking.Create(ctx, clientID, emailType, subject)
	if err != nil {
		log.Printf("notify: create tracking record failed: %v", err)
		return ""
	}
	return trackingPixel(d.BaseURL, rec.TrackingID)
}
