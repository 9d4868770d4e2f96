package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/logger"
)

// OAuthService is the part of the OAuth service the integration API uses.
type OAuthService interface {
	AuthorizeURL(ctx context.Context, provider shipment.Provider, clientID uuid.UUID, shop string) (string, error)
	HandleCallback(ctx context.Context, provider shipment.Provider, query url.Values) (*integration.ProviderLink, error)
}

// IntegrationHandler links clients to storefront and marketplace accounts
type IntegrationHandler struct {
	BaseHandler
	oauth OAuthService
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(oauth OAuthService) *IntegrationHandler {
	return &IntegrationHandler{oauth: oauth}
}

// RegisterRoutes mounts the integration endpoints under rg.
func (h *IntegrationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/integrations/:provider")
	g.GET("/authorize", h.Authorize)
	g.GET("/callback", h.Callback)
}

type authorizeQuery struct {
	ClientID string `form:"client_id" binding:"required,uuid"`
	Shop     string `form:"shop" binding:"max=255"`
	// Format "json" returns the URL instead of redirecting.
	Format string `form:"format" binding:"omitempty,oneof=json redirect"`
}

// LinkResponse describes a provider link without its credential
type LinkResponse struct {
	ClientID          uuid.UUID  `json:"client_id"`
	Provider          string     `json:"provider"`
	ExternalAccountID string     `json:"external_account_id,omitempty"`
	ShopDomain        string     `json:"shop_domain,omitempty"`
	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty"`
	LinkedAt          time.Time  `json:"linked_at"`
}

// Authorize sends the operator to the provider consent screen
// GET /api/v1/integrations/:provider/authorize?client_id=&shop=
func (h *IntegrationHandler) Authorize(c *gin.Context) {
	provider, ok := h.externalProvider(c)
	if !ok {
		return
	}
	var query authorizeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "client_id must be a valid UUID")
		return
	}

	target, err := h.oauth.AuthorizeURL(c.Request.Context(), provider, uuid.MustParse(query.ClientID), query.Shop)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if query.Format == "json" {
		h.Success(c, gin.H{"url": target})
		return
	}
	c.Redirect(http.StatusFound, target)
}

// Callback completes the authorization started by Authorize
// GET /api/v1/integrations/:provider/callback?code=&state=
func (h *IntegrationHandler) Callback(c *gin.Context) {
	provider, ok := h.externalProvider(c)
	if !ok {
		return
	}
	ctx := logger.WithProvider(c.Request.Context(), provider.String())

	link, err := h.oauth.HandleCallback(ctx, provider, c.Request.URL.Query())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, LinkResponse{
		ClientID:          link.ClientID,
		Provider:          link.Provider.String(),
		ExternalAccountID: link.ExternalAccountID,
		ShopDomain:        link.ShopDomain,
		TokenExpiresAt:    link.Credential.ExpiresAt,
		LinkedAt:          link.UpdatedAt,
	})
}

func (h *IntegrationHandler) externalProvider(c *gin.Context) (shipment.Provider, bool) {
	provider := shipment.Provider(strings.ToLower(c.Param("provider")))
	if !provider.IsExternal() {
		h.NotFound(c, "Unknown provider")
		return "", false
	}
	return provider, true
}
