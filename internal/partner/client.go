package partner

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/prudhvinik1/numberwatch/internal/ratelimit"
)

const (
	DefaultTimeout = 30 * time.Second

	listFields   = "id,display_phone_number"
	detailFields = "id,display_phone_number,verified_name,quality_rating,messaging_limit_tier,status"
)

// ResourceSummary is one entry of the phone number listing.
type ResourceSummary struct {
	ID        string `json:"id"`
	DisplayID string `json:"display_phone_number"`
}

// ResourceDetail is the vendor view of one phone number. Values are raw vendor
// strings; Raw keeps the full payload including fields not modelled here.
type ResourceDetail struct {
	ID             string          `json:"id"`
	DisplayID      string          `json:"display_phone_number"`
	VerifiedName   string          `json:"verified_name"`
	QualityRating  string          `json:"quality_rating"`
	ThroughputTier string          `json:"messaging_limit_tier"`
	Status         string          `json:"status"`
	Raw            json.RawMessage `json:"-"`
}

type listEnvelope struct {
	Data   *[]ResourceSummary `json:"data"`
	Paging *struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

type errorEnvelope struct {
	Error *struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// Client calls the partner Graph-style API. Every request is charged to the
// owning account's rate window before any network I/O.
type Client struct {
	httpClient *resty.Client
	limiter    ratelimit.Limiter
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, limiter ratelimit.Limiter, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}
}

// ListResources returns every phone number under the business account, following pagination.
func (c *Client) ListResources(ctx context.Context, accountID, businessAccountID, token string) ([]ResourceSummary, error) {
	const op = "list_resources"
	var resources []ResourceSummary
	after := ""

	for {
		params := map[string]string{"fields": listFields}
		if after != "" {
			params["after"] = after
		}
		body, err := c.get(ctx, op, accountID, "/"+businessAccountID+"/phone_numbers", token, params)
		if err != nil {
			return nil, err
		}

		var envelope listEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, &Error{Kind: KindMalformedResponse, Op: op, Message: "response is not JSON", Err: err}
		}
		if envelope.Data == nil {
			return nil, &Error{Kind: KindMalformedResponse, Op: op, Message: "missing data envelope"}
		}
		resources = append(resources, *envelope.Data...)

		if envelope.Paging == nil || envelope.Paging.Next == "" || envelope.Paging.Cursors.After == "" {
			break
		}
		after = envelope.Paging.Cursors.After
	}

	c.logger.Debug("listed partner resources",
		zap.String("account_id", accountID),
		zap.Int("count", len(resources)),
	)
	return resources, nil
}

func (c *Client) FetchResourceDetail(ctx context.Context, accountID, resourceID, token string) (*ResourceDetail, error) {
	const op = "fetch_resource_detail"
	body, err := c.get(ctx, op, accountID, "/"+resourceID, token, map[string]string{"fields": detailFields})
	if err != nil {
		return nil, err
	}

	var detail ResourceDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Op: op, Message: "response is not JSON", Err: err}
	}
	if detail.ID == "" {
		return nil, &Error{Kind: KindMalformedResponse, Op: op, Message: "missing id in resource detail"}
	}
	detail.Raw = json.RawMessage(body)
	return &detail, nil
}

func (c *Client) get(ctx context.Context, op, accountID, path, token string, params map[string]string) ([]byte, error) {
	if !c.limiter.Allow(ctx, accountID) {
		return nil, &Error{Kind: KindRateLimited, Op: op, Message: ErrRateLimited.Error(), Err: ErrRateLimited}
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return nil, classifyTransport(op, err)
	}

	body := resp.Body()
	if resp.IsSuccess() {
		return body, nil
	}

	perr := classifyStatus(op, resp.StatusCode(), body)
	c.logger.Warn("partner call failed",
		zap.String("op", op),
		zap.String("account_id", accountID),
		zap.String("kind", string(perr.Kind)),
		zap.Int("status_code", perr.StatusCode),
		zap.Int("code", perr.Code),
	)
	return nil, perr
}

func classifyTransport(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func classifyStatus(op string, status int, body []byte) *Error {
	perr := &Error{Kind: KindUnknown, Op: op, StatusCode: status, Message: http.StatusText(status)}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		perr.Code = envelope.Error.Code
		if envelope.Error.Message != "" {
			perr.Message = envelope.Error.Message
		}
	}

	switch {
	case status == http.StatusUnauthorized || authErrorCodes[perr.Code]:
		perr.Kind = KindAuthInvalid
	case status == http.StatusTooManyRequests || throttleErrorCodes[perr.Code]:
		perr.Kind = KindRateLimited
		perr.Err = ErrRateLimited
	}
	return perr
}
