package crawler

import (
	"context"
	"strings"
	"time"

	emailverifier "github.com/AfterShip/email-verifier"
	"github.com/mcnijman/go-emailaddress"
)

// verifyTimeout is the whole budget for one verification; fail-closed.
const verifyTimeout = 3 * time.Second

// Verifier performs a fast deliverability check on extracted addresses:
// syntax plus MX records, with SMTP deliverability accepted when available.
type Verifier struct {
	verifier *emailverifier.Verifier
}

// NewVerifier creates a Verifier.
func NewVerifier() *Verifier {
	return &Verifier{verifier: emailverifier.NewVerifier()}
}

// Verify reports whether the address looks deliverable. Timeouts and lookup
// errors report false.
func (v *Verifier) Verify(ctx context.Context, email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}

	// Quick syntax parse avoids pointless verifier calls.
	if _, err := emailaddress.Parse(email); err != nil {
		return false
	}

	vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	type outcome struct{ deliverable bool }

	ch := make(chan outcome, 1)

	go func() {
		defer func() { _ = recover() }()

		res, err := v.verifier.Verify(email)
		if err != nil || res == nil {
			ch <- outcome{}
			return
		}

		deliverable := res.Syntax.Valid && res.HasMxRecords

		if res.SMTP != nil && res.SMTP.Deliverable {
			deliverable = true
		}

		if res.Reachable == "yes" {
			deliverable = true
		}

		ch <- outcome{deliverable: deliverable}
	}()

	select {
	case <-vctx.Done():
		return false
	case out := <-ch:
		return out.deliverable
	}
}
