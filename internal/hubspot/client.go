package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jcopacetic/lumi/internal/httpx"
	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/utils"
)

// ContactToCompanyAssociation is the HUBSPOT_DEFINED association type id for
// a contact's primary company.
const ContactToCompanyAssociation = 1

type Client interface {
	// UpsertContactByEmail creates the contact, falling back to a PATCH by
	// idProperty=email when HubSpot reports the contact already exists.
	UpsertContactByEmail(ctx context.Context, email string, properties map[string]string) (*ObjectResult, error)
	// UpsertCompanyByDomain creates the company, falling back to a PATCH by
	// idProperty=domain when HubSpot reports the company already exists.
	UpsertCompanyByDomain(ctx context.Context, domain string, properties map[string]string) (*ObjectResult, error)
	GetContactByEmail(ctx context.Context, email string) (*ObjectResult, error)
	GetCompanyByDomain(ctx context.Context, domain string) (*ObjectResult, error)
	AssociateContactToCompany(ctx context.Context, contactID, companyID string) error
}

type Config struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
}

func ConfigFromEnv() Config {
	timeoutSec := utils.GetEnvAsInt("HUBSPOT_TIMEOUT_SECONDS", 30, nil)
	maxRetries := utils.GetEnvAsInt("HUBSPOT_MAX_RETRIES", 2, nil)
	return Config{
		AccessToken: strings.TrimSpace(os.Getenv("HUBSPOT_ACCESS_TOKEN")),
		BaseURL:     strings.TrimSpace(os.Getenv("HUBSPOT_BASE_URL")),
		Timeout:     time.Duration(timeoutSec) * time.Second,
		MaxRetries:  maxRetries,
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, fmt.Errorf("missing HUBSPOT_ACCESS_TOKEN")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.hubapi.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &client{
		log:        log.With("client", "HubSpotClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	maxRetries int
}

// --- public request/response types ---

// ObjectResult is a HubSpot CRM object as returned by the objects API.
type ObjectResult struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type objectWriteRequest struct {
	Properties map[string]string `json:"properties"`
}

type associationSpec struct {
	AssociationCategory string `json:"associationCategory"`
	AssociationTypeID   int    `json:"associationTypeId"`
}

// --- errors ---

type apiErrorBody struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

type APIError struct {
	StatusCode int
	Body       string
	Message    string
	Category   string
}

func (e *APIError) Error() string {
	if e == nil {
		return "hubspot: <nil error>"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 4000 {
		msg = msg[:4000] + "..."
	}
	return fmt.Sprintf("hubspot http %d: %s", e.StatusCode, msg)
}

func (e *APIError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// IsConflict reports whether err is HubSpot saying the object already exists,
// which is the signal to switch from create to update.
func IsConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusConflict {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "already exists")
}

// IsNotFound reports whether err is a HubSpot 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// --- contacts ---

func (c *client) UpsertContactByEmail(ctx context.Context, email string, properties map[string]string) (*ObjectResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("hubspot: contact email required")
	}

	created, err := c.createObject(ctx, "/crm/v3/objects/contacts", properties)
	if err == nil {
		c.log.Info("HubSpot contact created", "email", email, "contact_id", created.ID)
		return created, nil
	}
	if !IsConflict(err) {
		return nil, err
	}

	path := "/crm/v3/objects/contacts/" + url.PathEscape(email) + "?idProperty=email"
	updated, err := c.patchObject(ctx, path, properties)
	if err != nil {
		return nil, err
	}
	c.log.Info("HubSpot contact updated", "email", email, "contact_id", updated.ID)
	return updated, nil
}

func (c *client) GetContactByEmail(ctx context.Context, email string) (*ObjectResult, error) {
	path := "/crm/v3/objects/contacts/" + url.PathEscape(strings.TrimSpace(email)) + "?idProperty=email"
	return c.getObject(ctx, path)
}

// --- companies ---

func (c *client) UpsertCompanyByDomain(ctx context.Context, domain string, properties map[string]string) (*ObjectResult, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, fmt.Errorf("hubspot: company domain required")
	}

	created, err := c.createObject(ctx, "/crm/v3/objects/companies", properties)
	if err == nil {
		c.log.Info("HubSpot company created", "domain", domain, "company_id", created.ID)
		return created, nil
	}
	if !IsConflict(err) {
		return nil, err
	}

	path := "/crm/v3/objects/companies/" + url.PathEscape(domain) + "?idProperty=domain"
	updated, err := c.patchObject(ctx, path, properties)
	if err != nil {
		return nil, err
	}
	c.log.Info("HubSpot company updated", "domain", domain, "company_id", updated.ID)
	return updated, nil
}

func (c *client) GetCompanyByDomain(ctx context.Context, domain string) (*ObjectResult, error) {
	path := "/crm/v3/objects/companies/" + url.PathEscape(strings.TrimSpace(domain)) + "?idProperty=domain"
	return c.getObject(ctx, path)
}

// --- associations ---

func (c *client) AssociateContactToCompany(ctx context.Context, contactID, companyID string) error {
	path := fmt.Sprintf("/crm/v4/objects/contacts/%s/associations/companies/%s", url.PathEscape(contactID), url.PathEscape(companyID))
	body := []associationSpec{{
		AssociationCategory: "HUBSPOT_DEFINED",
		AssociationTypeID:   ContactToCompanyAssociation,
	}}
	if _, _, err := c.do(ctx, http.MethodPut, path, body); err != nil {
		return err
	}
	c.log.Info("HubSpot association created", "contact_id", contactID, "company_id", companyID)
	return nil
}

// --- object helpers ---

func (c *client) createObject(ctx context.Context, path string, properties map[string]string) (*ObjectResult, error) {
	_, raw, err := c.do(ctx, http.MethodPost, path, objectWriteRequest{Properties: properties})
	if err != nil {
		return nil, err
	}
	return decodeObject(raw)
}

func (c *client) patchObject(ctx context.Context, path string, properties map[string]string) (*ObjectResult, error) {
	_, raw, err := c.do(ctx, http.MethodPatch, path, objectWriteRequest{Properties: properties})
	if err != nil {
		return nil, err
	}
	return decodeObject(raw)
}

func (c *client) getObject(ctx context.Context, path string) (*ObjectResult, error) {
	_, raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return decodeObject(raw)
}

func decodeObject(raw []byte) (*ObjectResult, error) {
	var obj ObjectResult
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("hubspot: decode response: %w", err)
	}
	if obj.ID == "" {
		return nil, fmt.Errorf("hubspot: response missing object id")
	}
	return &obj, nil
}

// ---------- HTTP / retry helpers ----------

func (c *client) do(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return resp, raw, nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return nil, nil, err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("HubSpot request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return nil, nil, errors.New("unreachable retry loop")
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}

		var eb apiErrorBody
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Message = eb.Message
			apiErr.Category = eb.Category
		}
		return resp, raw, apiErr
	}

	return resp, raw, nil
}
