package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/hllvc/notegate/internal/msauth"
)

// DeviceFlow is the slice of msauth.Client the authorizer needs.
type DeviceFlow interface {
	StartDeviceFlow(ctx context.Context) (*oauth2.DeviceAuthResponse, error)
	WaitForToken(ctx context.Context, auth *oauth2.DeviceAuthResponse) (*oauth2.Token, error)
}

// defaultReminderInterval paces the "still waiting" notices while the operator
// signs in on another device.
const defaultReminderInterval = 30 * time.Second

// DeviceAuthorizer guides a human operator through the device-code flow:
// it displays the verification URL and user code, then blocks polling the
// authority until sign-in completes or the code expires.
type DeviceAuthorizer struct {
	flow          DeviceFlow
	out           io.Writer
	reminderEvery time.Duration
}

var _ Authorizer = (*DeviceAuthorizer)(nil)

// NewDeviceAuthorizer creates a DeviceAuthorizer writing operator prompts to
// out (typically stderr, keeping stdout pipeable).
func NewDeviceAuthorizer(flow DeviceFlow, out io.Writer) (*DeviceAuthorizer, error) {
	if flow == nil {
		return nil, fmt.Errorf("missing device flow")
	}
	if out == nil {
		out = os.Stderr
	}

	return &DeviceAuthorizer{
		flow:          flow,
		out:           out,
		reminderEvery: defaultReminderInterval,
	}, nil
}

// Authorize runs the device-code flow once. Blocks for up to the code's
// lifetime; cancel ctx to abandon the sign-in.
func (d *DeviceAuthorizer) Authorize(ctx context.Context) (*oauth2.Token, error) {
	auth, err := d.flow.StartDeviceFlow(ctx)
	if err != nil {
		return nil, err
	}

	d.prompt(auth)

	g, gCtx := errgroup.WithContext(ctx)
	reminderCtx, stopReminder := context.WithCancel(gCtx)
	defer stopReminder()

	var token *oauth2.Token
	g.Go(func() error {
		defer stopReminder()
		tok, err := d.flow.WaitForToken(gCtx, auth)
		if err != nil {
			return err
		}
		token = tok
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(d.reminderEvery)
		defer ticker.Stop()
		for {
			select {
			case <-reminderCtx.Done():
				return nil
			case <-ticker.C:
				d.remind(auth)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fmt.Fprintln(d.out, "Sign-in complete.")
	return token, nil
}

// prompt displays the verification URL and user code. A framed banner is used
// on interactive terminals; plain lines otherwise so logs stay greppable.
func (d *DeviceAuthorizer) prompt(auth *oauth2.DeviceAuthResponse) {
	if d.isTerminal() {
		rule := strings.Repeat("=", 60)
		fmt.Fprintln(d.out)
		fmt.Fprintln(d.out, rule)
		fmt.Fprintln(d.out, "MICROSOFT SIGN-IN REQUIRED")
		fmt.Fprintln(d.out, rule)
	}

	if auth.VerificationURIComplete != "" {
		fmt.Fprintf(d.out, "Open on any device: %s\n", auth.VerificationURIComplete)
	} else {
		fmt.Fprintf(d.out, "Open on any device: %s\n", auth.VerificationURI)
		fmt.Fprintf(d.out, "Enter this code:    %s\n", auth.UserCode)
	}
	if !auth.Expiry.IsZero() {
		fmt.Fprintf(d.out, "The code expires in %s.\n", time.Until(auth.Expiry).Round(time.Second))
	}

	if d.isTerminal() {
		fmt.Fprintln(d.out, strings.Repeat("=", 60))
		fmt.Fprintln(d.out)
	}
}

func (d *DeviceAuthorizer) remind(auth *oauth2.DeviceAuthResponse) {
	if auth.Expiry.IsZero() {
		fmt.Fprintln(d.out, "Still waiting for sign-in...")
		return
	}
	fmt.Fprintf(d.out, "Still waiting for sign-in... code expires in %s.\n",
		time.Until(auth.Expiry).Round(time.Second))
}

func (d *DeviceAuthorizer) isTerminal() bool {
	f, ok := d.out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// interface compliance with the real protocol client
var _ DeviceFlow = (*msauth.Client)(nil)
