package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/batch"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
)

// resendAPIURL is a variable so tests can point it at a local server.
var resendAPIURL = "https://api.resend.com/emails"

type Service struct {
	storage storage.Storage
}

func NewService(s storage.Storage) *Service {
	return &Service{storage: s}
}

func (s *Service) GetConfig(ctx context.Context) (*storage.EmailConfig, error) {
	return s.storage.GetEmailConfig(ctx)
}

func (s *Service) SaveConfig(ctx context.Context, cfg storage.EmailConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	return s.storage.SaveEmailConfig(ctx, cfg)
}

func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	cfg, err := s.storage.GetEmailConfig(ctx)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.Enabled {
		return errors.New("email not configured or disabled")
	}
	return s.send(cfg, to, subject, body)
}

// TestConfig sends a test email with the provided config without saving it.
func (s *Service) TestConfig(ctx context.Context, cfg storage.EmailConfig, to string) error {
	return s.send(&cfg, to, "RainForge Test Email", "This is a test email from RainForge.")
}

// SendBatchReport mails a summary of a finished batch assessment.
func (s *Service) SendBatchReport(ctx context.Context, to string, res *batch.Result) error {
	subject := fmt.Sprintf("Batch Assessment Report: %s", res.Name)
	return s.SendEmail(ctx, to, subject, batchReportBody(res))
}

func batchReportBody(res *batch.Result) string {
	payback := "n/a"
	if res.AvgPaybackYears != nil {
		payback = fmt.Sprintf("%.1f years", *res.AvgPaybackYears)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "<h2>Batch Assessment: %s</h2>", res.Name)
	fmt.Fprintf(&b, "<p>Scenario: %s</p>", res.Scenario)
	fmt.Fprintf(&b, "<table border=\"0\" cellpadding=\"4\">")
	fmt.Fprintf(&b, "<tr><td>Sites</td><td>%d</td></tr>", res.TotalSites)
	fmt.Fprintf(&b, "<tr><td>Assessed</td><td>%d</td></tr>", res.ProcessedSites)
	fmt.Fprintf(&b, "<tr><td>Failed</td><td>%d</td></tr>", res.FailedSites)
	fmt.Fprintf(&b, "<tr><td>Total annual capture</td><td>%.0f liters</td></tr>", res.TotalCaptureLiters)
	fmt.Fprintf(&b, "<tr><td>Total system cost</td><td>INR %.0f</td></tr>", res.TotalCostINR)
	fmt.Fprintf(&b, "<tr><td>Average payback</td><td>%s</td></tr>", payback)
	fmt.Fprintf(&b, "<tr><td>Duration</td><td>%s</td></tr>", time.Duration(res.DurationMS)*time.Millisecond)
	fmt.Fprintf(&b, "</table>")

	if len(res.FailedResults) > 0 {
		fmt.Fprintf(&b, "<h3>Failed Sites</h3><ul>")
		for _, f := range res.FailedResults {
			fmt.Fprintf(&b, "<li>%s: %s</li>", f.SiteID, f.Reason)
		}
		fmt.Fprintf(&b, "</ul>")
	}

	return b.String()
}

func (s *Service) send(cfg *storage.EmailConfig, to, subject, body string) error {
	switch cfg.Provider {
	case "smtp", "gmail":
		return s.sendSMTP(cfg, to, subject, body)
	case "sendgrid":
		return s.sendSendgrid(cfg, to, subject, body)
	case "resend":
		return s.sendResend(cfg, to, subject, body)
	default:
		return fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func buildMessage(to, subject, body string) []byte {
	return []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"%s\r\n", to, subject, body))
}

func (s *Service) sendSMTP(cfg *storage.EmailConfig, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	msg := buildMessage(to, subject, body)

	switch cfg.Encryption {
	case "ssl":
		// Implicit TLS
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
		if err != nil {
			return err
		}
		defer conn.Close()

		c, err := smtp.NewClient(conn, cfg.Host)
		if err != nil {
			return err
		}
		defer c.Quit()

		return s.submit(c, cfg, to, msg)
	case "tls":
		// STARTTLS
		c, err := smtp.Dial(addr)
		if err != nil {
			return err
		}
		defer c.Quit()

		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
				return err
			}
		}

		return s.submit(c, cfg, to, msg)
	default:
		// None / Plain
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		return smtp.SendMail(addr, auth, cfg.FromAddress, []string{to}, msg)
	}
}

func (s *Service) submit(c *smtp.Client, cfg *storage.EmailConfig, to string, msg []byte) error {
	if cfg.Username != "" && cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(cfg.FromAddress); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (s *Service) sendSendgrid(cfg *storage.EmailConfig, to, subject, body string) error {
	from := mail.NewEmail(cfg.FromName, cfg.FromAddress)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, body, body)
	client := sendgrid.NewSendClient(cfg.APIKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *Service) sendResend(cfg *storage.EmailConfig, to, subject, body string) error {
	payload := map[string]string{
		"from":    fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
		"to":      to,
		"subject": subject,
		"html":    body,
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", resendAPIURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend error: %d %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}
