// Package directory holds read-only clients for the externally owned user
// and property services. Lookups are independently failable; callers decide
// whether a failure degrades the operation (enrichment) or aborts it.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rentora/appointment-service/internal/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNotFound means the directory answered and the record does not exist,
// as opposed to the directory being unreachable.
var ErrNotFound = errors.New("directory: record not found")

type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
}

type PropertyDirectory interface {
	GetPropertyByID(ctx context.Context, id int64) (model.Property, error)
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// UserClient talks to the user service's internal lookup API.
type UserClient struct {
	baseURL string
	http    *http.Client
}

func NewUserClient(cfg ClientConfig) *UserClient {
	return &UserClient{
		baseURL: cfg.BaseURL,
		http:    newHTTPClient(cfg.Timeout),
	}
}

type userRecord struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phoneNumber"`
	ProfileImage string `json:"profileImage"`
}

func (c *UserClient) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	var rec userRecord
	if err := c.get(ctx, fmt.Sprintf("/api/internal/users/id/%d", id), &rec); err != nil {
		return model.User{}, err
	}
	return rec.toModel(), nil
}

func (c *UserClient) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var rec userRecord
	if err := c.get(ctx, "/api/internal/users/username/"+url.PathEscape(username), &rec); err != nil {
		return model.User{}, err
	}
	return rec.toModel(), nil
}

func (rec userRecord) toModel() model.User {
	return model.User{
		ID:           rec.ID,
		Username:     rec.Username,
		FirstName:    rec.FirstName,
		LastName:     rec.LastName,
		FullName:     rec.FullName,
		Email:        rec.Email,
		PhoneNumber:  rec.PhoneNumber,
		ProfileImage: rec.ProfileImage,
	}
}

func (c *UserClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("user directory: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("user directory: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("user directory: decode: %w", err)
	}
	return nil
}

// PropertyClient talks to the property service's public API. The service
// wraps its payload in an envelope with a success flag; success=false is
// treated as not found.
type PropertyClient struct {
	baseURL string
	http    *http.Client
}

func NewPropertyClient(cfg ClientConfig) *PropertyClient {
	return &PropertyClient{
		baseURL: cfg.BaseURL,
		http:    newHTTPClient(cfg.Timeout),
	}
}

type propertyEnvelope struct {
	PropertyID  int64   `json:"propertyId"`
	Message     string  `json:"message"`
	Success     bool    `json:"success"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Address     string  `json:"address"`
	RentAmount  float64 `json:"rentAmount"`
	Rented      bool    `json:"rented"`
	Image       string  `json:"image"`
	Image2      string  `json:"image2"`
	Image3      string  `json:"image3"`
	Image4      string  `json:"image4"`
}

func (c *PropertyClient) GetPropertyByID(ctx context.Context, id int64) (model.Property, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v1/properties/%d", c.baseURL, id), nil)
	if err != nil {
		return model.Property{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return model.Property{}, fmt.Errorf("property directory: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.Property{}, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return model.Property{}, fmt.Errorf("property directory: unexpected status %d", resp.StatusCode)
	}

	var env propertyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return model.Property{}, fmt.Errorf("property directory: decode: %w", err)
	}
	if !env.Success {
		return model.Property{}, ErrNotFound
	}
	return model.Property{
		ID:          env.PropertyID,
		Title:       env.Title,
		Description: env.Description,
		Address:     env.Address,
		RentAmount:  env.RentAmount,
		IsRented:    env.Rented,
		Image:       env.Image,
		Image2:      env.Image2,
		Image3:      env.Image3,
		Image4:      env.Image4,
	}, nil
}
