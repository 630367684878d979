package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"s7link/pkg/apis"
	"s7link/pkg/apis/response"
	"s7link/pkg/plc"
	"s7link/pkg/session"
)

// PLC is what the handlers need from a session.
type PLC interface {
	Read(ctx context.Context, items []session.Item) (*plc.Response, error)
	Write(ctx context.Context, items []session.Item) (*plc.Response, error)
	Status() session.Status
}

type itemsRequest struct {
	Items interface{} `json:"items"`
}

type itemResult struct {
	Name    string      `json:"name"`
	Address string      `json:"address"`
	Value   interface{} `json:"value,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type itemsResponse struct {
	Items  []itemResult `json:"items"`
	Errors []error      `json:"errors,omitempty"`
}

func InstallHandler(group *gin.RouterGroup, p PLC) {
	group.POST("/read", readItems(p))
	group.GET("/read", readTags(p))
	group.POST("/write", writeItems(p))
	group.GET("/status", status(p))
}

func readItems(p PLC) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, ok := bindItems(c)
		if !ok {
			return
		}
		r, err := p.Read(c.Request.Context(), items)
		reply(c, r, err)
	}
}

// readTags serves GET /read?tag=%MW0&tag=%DB1:0:REAL.
func readTags(p PLC) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := session.DecodeItems(c.QueryArray(apis.Tag))
		if err == nil && len(items) == 0 {
			err = errors.Wrapf(plc.ErrEmptyRequest, "no %q query parameter", apis.Tag)
		}
		if err != nil {
			re, code := response.FromError(err)
			c.JSON(code, response.NewMultiError(re))
			return
		}
		r, err := p.Read(c.Request.Context(), items)
		reply(c, r, err)
	}
}

func writeItems(p PLC) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, ok := bindItems(c)
		if !ok {
			return
		}
		r, err := p.Write(c.Request.Context(), items)
		reply(c, r, err)
	}
}

func status(p PLC) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, p.Status())
	}
}

func bindItems(c *gin.Context) ([]session.Item, bool) {
	var body itemsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		klog.V(2).InfoS("Failed to parse request body", "err", err)
		c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
		return nil, false
	}
	items, err := session.DecodeItems(body.Items)
	if err == nil && len(items) == 0 {
		err = plc.ErrEmptyRequest
	}
	if err != nil {
		klog.V(2).InfoS("Failed to decode items", "err", err)
		re, code := response.FromError(err)
		if code == http.StatusInternalServerError {
			re, code = response.ErrRequestBody(err), http.StatusBadRequest
		}
		c.JSON(code, response.NewMultiError(re))
		return nil, false
	}
	return items, true
}

// reply answers with every item when the PLC produced a response, failed
// items included, and with the error alone otherwise.
func reply(c *gin.Context, r *plc.Response, err error) {
	if r == nil {
		if err == nil {
			err = errors.New("no response")
		}
		re, code := response.FromError(err)
		c.JSON(code, response.NewMultiError(re))
		return
	}

	body := itemsResponse{Items: make([]itemResult, 0, len(r.Items))}
	errs := response.NewMultiError()
	for _, item := range r.Items {
		result := itemResult{Name: item.Name, Address: item.Address}
		if item.Value != nil {
			result.Value = item.Value.Interface()
		}
		if item.Err != nil {
			result.Error = item.Err.Error()
			errs.Add(response.ErrItemFailed(item.Name, item.Err))
		}
		body.Items = append(body.Items, result)
	}
	code := http.StatusOK
	if err != nil {
		if errs.Len() == 0 {
			re, _ := response.FromError(err)
			errs.Add(re)
		}
		code = http.StatusBadGateway
	}
	if errs.Len() > 0 {
		body.Errors = errs.List()
	}
	c.JSON(code, body)
}
