package engine

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"trade_core/internal/infra"
)

// EmailEngineName is the registry name of the mail sink.
const EmailEngineName = "email"

const emailQueueSize = 256

// Mail is one queued message.
type Mail struct {
	Subject  string
	Content  string
	Receiver string
}

// SendFunc delivers a formatted RFC 5322 message.
type SendFunc func(from string, to []string, msg []byte) error

// EmailEngine sends mail from its own goroutine so that callers, often bus
// handlers, never wait on the SMTP server. The goroutine starts on the
// first SendEmail.
type EmailEngine struct {
	cfg    infra.EmailConfig
	send   SendFunc
	logger *slog.Logger

	queue chan Mail

	mu      sync.Mutex
	started bool
	closed  bool
	stop    chan struct{}
	wg      conc.WaitGroup
}

// NewEmailEngine creates the mail sink. A nil send uses the configured SMTP server.
func NewEmailEngine(cfg infra.EmailConfig, send SendFunc, logger *slog.Logger) *EmailEngine {
	e := &EmailEngine{
		cfg:    cfg,
		send:   send,
		logger: logger.With(slog.String("engine", EmailEngineName)),
		queue:  make(chan Mail, emailQueueSize),
		stop:   make(chan struct{}),
	}
	if e.send == nil {
		e.send = smtpSender(cfg)
	}
	return e
}

func (e *EmailEngine) Name() string { return EmailEngineName }

// SendEmail queues a message. An empty receiver means the configured one.
// Mail is dropped, with a warning, when the engine is disabled or closed, or
// when the queue is full.
func (e *EmailEngine) SendEmail(subject, content, receiver string) {
	if !e.cfg.Enabled {
		e.logger.Debug("Email disabled, message dropped", slog.String("subject", subject))
		return
	}
	if receiver == "" {
		receiver = e.cfg.Receiver
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		e.logger.Warn("Email engine closed, message dropped", slog.String("subject", subject))
		return
	}
	if !e.started {
		e.started = true
		e.wg.Go(e.run)
	}

	select {
	case e.queue <- Mail{Subject: subject, Content: content, Receiver: receiver}:
	default:
		e.logger.Warn("Email queue full, message dropped", slog.String("subject", subject))
	}
}

func (e *EmailEngine) run() {
	for {
		select {
		case <-e.stop:
			e.drain()
			return
		case m := <-e.queue:
			e.deliver(m)
		}
	}
}

func (e *EmailEngine) drain() {
	for {
		select {
		case m := <-e.queue:
			e.deliver(m)
		default:
			return
		}
	}
}

func (e *EmailEngine) deliver(m Mail) {
	msg := formatMail(e.cfg.Sender, m, time.Now())
	if err := e.send(e.cfg.Sender, []string{m.Receiver}, msg); err != nil {
		e.logger.Error("Failed to send email",
			slog.String("subject", m.Subject),
			slog.String("receiver", m.Receiver),
			slog.Any("error", err))
		return
	}
	e.logger.Debug("Email sent", slog.String("subject", m.Subject))
}

// Close delivers what is already queued and stops the goroutine.
func (e *EmailEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	if started {
		close(e.stop)
		e.wg.Wait()
	}
	return nil
}

func formatMail(from string, m Mail, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + m.Receiver + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", m.Subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Content)
	return []byte(b.String())
}

// smtpSender dials the server with implicit TLS on port 465 and falls back
// to smtp.SendMail (STARTTLS when offered) on any other port.
func smtpSender(cfg infra.EmailConfig) SendFunc {
	addr := net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port))
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Server)

	if cfg.Port != 465 {
		return func(from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, auth, from, to, msg)
		}
	}

	return func(from string, to []string, msg []byte) error {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Server})
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		c, err := smtp.NewClient(conn, cfg.Server)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp handshake: %w", err)
		}
		defer c.Close()

		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
		if err := c.Mail(from); err != nil {
			return err
		}
		for _, rcpt := range to {
			if err := c.Rcpt(rcpt); err != nil {
				return err
			}
		}
		w, err := c.Data()
		if err != nil {
			return err
		}
		if _, err := w.Write(msg); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		return c.Quit()
	}
}
