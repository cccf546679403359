package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/smallbiznis/quotepilot/internal/config"
	"github.com/smallbiznis/quotepilot/internal/notification/domain"
	"github.com/smallbiznis/quotepilot/internal/observability/metrics"
	"github.com/smallbiznis/quotepilot/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var subjects = map[domain.Template]string{
	domain.TemplateOnboarding:   "%s — Réservez votre onboarding (essai 14 jours)",
	domain.TemplateQuoteCreated: "%s — Votre devis est prêt",
}

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Email   email.Provider
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	cfg     config.EmailConfig
	log     *zap.Logger
	email   email.Provider
	metrics *metrics.Metrics
}

type templateData struct {
	BrandName    string
	CalendlyLink string
	SupportEmail string
	Vars         map[string]string
}

func New(p Params) domain.Service {
	return &Service{
		cfg:     p.Config.Email,
		log:     p.Log.Named("notification.service"),
		email:   p.Email,
		metrics: p.Metrics,
	}
}

func (s *Service) Send(ctx context.Context, tmpl domain.Template, recipients []string, vars map[string]string) {
	if len(recipients) == 0 {
		s.metrics.RecordNotification(ctx, string(tmpl), "skipped")
		return
	}

	msg, err := s.render(tmpl, recipients, vars)
	if err != nil {
		s.log.Error("render notification", zap.String("template", string(tmpl)), zap.Error(err))
		s.metrics.RecordNotification(ctx, string(tmpl), "error")
		return
	}

	if err := s.email.Send(ctx, msg); err != nil {
		s.log.Warn("notification not sent", zap.String("template", string(tmpl)), zap.Error(err))
		s.metrics.RecordNotification(ctx, string(tmpl), "error")
		return
	}

	s.log.Info("notification sent", zap.String("template", string(tmpl)))
	s.metrics.RecordNotification(ctx, string(tmpl), "sent")
}

func (s *Service) render(tmpl domain.Template, recipients []string, vars map[string]string) (email.Message, error) {
	subject, ok := subjects[tmpl]
	if !ok {
		return email.Message{}, fmt.Errorf("%w: %s", domain.ErrUnknownTemplate, tmpl)
	}

	data := templateData{
		BrandName:    s.cfg.BrandName,
		CalendlyLink: s.cfg.CalendlyLink,
		SupportEmail: s.cfg.SupportEmail,
		Vars:         vars,
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, string(tmpl)+".html", data); err != nil {
		return email.Message{}, fmt.Errorf("execute template: %w", err)
	}

	return email.Message{
		From:    s.cfg.SenderEmail,
		To:      recipients,
		Subject: fmt.Sprintf(subject, s.cfg.BrandName),
		HTML:    body.String(),
	}, nil
}
