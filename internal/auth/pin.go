package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"

	apperrors "quotex-trader/internal/errors"
)

// pinSender is the address the platform sends authentication PINs from.
const pinSender = "noreply@qxbroker.com"

// PINSource produces the 2FA PIN the login interstitial asks for.
type PINSource interface {
	PIN(ctx context.Context) (string, error)
}

// PromptPIN reads the PIN interactively.
type PromptPIN struct {
	In  io.Reader
	Out io.Writer
}

func (p *PromptPIN) PIN(ctx context.Context) (string, error) {
	if p.Out != nil {
		fmt.Fprint(p.Out, "Enter the PIN code sent to your email: ")
	}
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading PIN: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// MailPIN polls an IMAP inbox for the platform's PIN email.
type MailPIN struct {
	Host     string // host:993 is assumed when no port is given
	Email    string
	Password string
	Attempts int
	Interval time.Duration
	Log      zerolog.Logger
}

// PIN connects to the mailbox and polls for the newest PIN email,
// retrying a bounded number of times before giving up.
func (m *MailPIN) PIN(ctx context.Context) (string, error) {
	addr := m.Host
	if !strings.Contains(addr, ":") {
		addr += ":993"
	}
	attempts := m.Attempts
	if attempts <= 0 {
		attempts = 5
	}
	interval := m.Interval
	if interval <= 0 {
		interval = time.Second
	}

	c, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return "", fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer c.Logout()

	if err := c.Login(m.Email, m.Password); err != nil {
		return "", fmt.Errorf("mailbox login: %w", err)
	}
	if _, err := c.Select("INBOX", true); err != nil {
		return "", fmt.Errorf("selecting inbox: %w", err)
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(interval):
			}
		}
		pin, err := m.fetchLatest(c)
		if err != nil {
			m.Log.Debug().Err(err).Int("attempt", attempt+1).Msg("PIN email not found yet")
			continue
		}
		if pin != "" {
			return pin, nil
		}
	}
	return "", apperrors.ErrPINTimeout
}

// fetchLatest pulls the most recent platform email and extracts the PIN.
func (m *MailPIN) fetchLatest(c *imapclient.Client) (string, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("From", pinSender)
	ids, err := c.Search(criteria)
	if err != nil {
		return "", fmt.Errorf("searching inbox: %w", err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("no email from %s", pinSender)
	}

	seq := new(imap.SeqSet)
	seq.AddNum(ids[len(ids)-1])
	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seq, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return "", fmt.Errorf("fetching message: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("empty fetch result")
	}
	body := msg.GetBody(section)
	if body == nil {
		return "", fmt.Errorf("message has no body")
	}
	return pinFromMessage(body)
}

// pinFromMessage walks the MIME parts looking for the PIN body. The
// platform bolds the code, so the first <b> of a part that mentions PIN
// carries it.
func pinFromMessage(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("parsing message: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading message part: %w", err)
		}
		if _, ok := part.Header.(*mail.InlineHeader); !ok {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		if pin := pinFromBody(string(body)); pin != "" {
			return pin, nil
		}
	}
	return "", fmt.Errorf("no PIN in message")
}

func pinFromBody(body string) string {
	if !strings.Contains(body, "PIN") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("b").First().Text())
}
