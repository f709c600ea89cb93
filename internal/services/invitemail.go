package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/sendgrid"
	"github.com/jcopacetic/lumi/internal/types"
	"github.com/jcopacetic/lumi/internal/utils"
)

type InviteMailer interface {
	// SendPartnerInvite emails the partner their signup link. The link embeds
	// the invite token and expires with it.
	SendPartnerInvite(ctx context.Context, partner *types.Partner) error
}

type inviteMailer struct {
	log         *logger.Logger
	mail        sendgrid.Client
	frontendURL string
}

func NewInviteMailer(log *logger.Logger, mail sendgrid.Client) InviteMailer {
	serviceLog := log.With("service", "InviteMailer")
	frontendURL := strings.TrimRight(utils.GetEnv("FRONTEND_URL", "http://localhost:3000", serviceLog), "/")
	return &inviteMailer{
		log:         serviceLog,
		mail:        mail,
		frontendURL: frontendURL,
	}
}

func (m *inviteMailer) SendPartnerInvite(ctx context.Context, partner *types.Partner) error {
	if m.mail == nil {
		m.log.Warn("SendGrid not configured; skipping invite email", "partner_id", partner.ID)
		return nil
	}

	link := fmt.Sprintf("%s/partners/accept-invite?token=%s", m.frontendURL, partner.InviteToken)
	name := strings.TrimSpace(partner.PrimaryContactFirstName)
	if name == "" {
		name = partner.CompanyName
	}

	text := fmt.Sprintf(
		"Hi %s,\n\n%s has been invited to join the Lumi partner portal.\n\n"+
			"Finish setting up your account here: %s\n\n"+
			"This link expires in 7 days. If you weren't expecting this email you can ignore it.\n",
		name, partner.CompanyName, link,
	)
	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p><strong>%s</strong> has been invited to join the Lumi partner portal.</p>
<p><a href="%s">Finish setting up your account</a></p>
<p>This link expires in 7 days. If you weren't expecting this email you can ignore it.</p>`,
		name, partner.CompanyName, link,
	)

	res, err := m.mail.Send(ctx, sendgrid.SendEmailRequest{
		To: []sendgrid.EmailAddress{
			{Email: partner.Email, Name: strings.TrimSpace(partner.PrimaryContactFirstName + " " + partner.PrimaryContactLastName)},
		},
		Subject: "You're invited to the Lumi partner portal",
		Text:    text,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("send partner invite: %w", err)
	}

	m.log.Info("Partner invite sent", "partner_id", partner.ID, "message_id", res.MessageID)
	return nil
}
