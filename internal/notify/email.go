package notify

import (
	"context"
	"errors"
	"fmt"

	"kaptam/internal/config"
	"kaptam/internal/models"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// EmailNotifier mails the admin about every reservation change and the
// customer when they left an address.
type EmailNotifier struct {
	cfg     config.EmailConfig
	siteURL string
	send    func(ctx context.Context, msgs ...*mail.Msg) error
	logger  *zerolog.Logger
}

func NewEmailNotifier(cfg config.EmailConfig, siteURL string, logger *zerolog.Logger) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}

	return &EmailNotifier{
		cfg:     cfg,
		siteURL: siteURL,
		send:    client.DialAndSendWithContext,
		logger:  logger,
	}, nil
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) NotifyReservation(ctx context.Context, kind string, r *models.Reservation) error {
	msgs, err := n.buildMessages(kind, r)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := n.send(ctx, msgs...); err != nil {
		return fmt.Errorf("send mail for %s: %w", r.Code, err)
	}
	n.logger.Debug().Str("code", r.Code).Int("messages", len(msgs)).Msg("reservation mail sent")
	return nil
}

func (n *EmailNotifier) buildMessages(kind string, r *models.Reservation) ([]*mail.Msg, error) {
	v := newView(kind, r, n.siteURL)
	var msgs []*mail.Msg

	if n.cfg.AdminAddress != "" {
		m, err := n.newMessage(n.cfg.AdminAddress, adminSubject(kind, r))
		if err != nil {
			return nil, err
		}
		if err := m.SetBodyTextTemplate(adminText, v); err != nil {
			return nil, fmt.Errorf("render admin text: %w", err)
		}
		if err := m.AddAlternativeHTMLTemplate(adminHTML, v); err != nil {
			return nil, fmt.Errorf("render admin html: %w", err)
		}
		if r.HasEmail() {
			if err := m.ReplyTo(r.Email); err != nil {
				n.logger.Warn().Err(err).Str("code", r.Code).Msg("customer address unusable as reply-to")
			}
		}
		msgs = append(msgs, m)
	}

	if r.HasEmail() {
		m, err := n.newMessage(r.Email, customerSubject(kind, r))
		if err != nil {
			// a typo in the customer's address must not block the admin notice
			n.logger.Warn().Err(err).Str("code", r.Code).Msg("skipping customer confirmation")
			return msgs, nil
		}
		if err := m.SetBodyTextTemplate(customerText, v); err != nil {
			return nil, fmt.Errorf("render customer text: %w", err)
		}
		if err := m.AddAlternativeHTMLTemplate(customerHTML, v); err != nil {
			return nil, fmt.Errorf("render customer html: %w", err)
		}
		msgs = append(msgs, m)
	}

	return msgs, nil
}

func (n *EmailNotifier) newMessage(to, subject string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, errors.Join(fmt.Errorf("to address %q", to), err)
	}
	m.Subject(subject)
	return m, nil
}
