package rest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
	"github.com/labstack/echo/v4"
)

const maxBodyBytes = 1 << 20

var errBadBody = fmt.Errorf("%w: invalid request body", common.ErrorValidation)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	DueDate     *string  `json:"dueDate"`
	Tags        []string `json:"tags"`
}

func (r createTaskRequest) input() (services.CreateTaskInput, error) {
	in := services.CreateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		Tags:        r.Tags,
	}
	if r.DueDate != nil && strings.TrimSpace(*r.DueDate) != "" {
		d, err := models.ParseDueDate(*r.DueDate)
		if err != nil {
			return in, err
		}
		in.DueDate = &d
	}
	return in, nil
}

// updateTaskRequest holds the fields present in an update body. A dueDate
// of null or "" clears the stored date; an absent one leaves it alone.
type updateTaskRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	Priority    *string   `json:"priority"`
	DueDate     *string   `json:"dueDate"`
	Tags        *[]string `json:"tags"`

	dueDateSent bool
}

func (r updateTaskRequest) patch() (models.TaskPatch, error) {
	p := models.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		Tags:        r.Tags,
	}
	switch {
	case !r.dueDateSent:
	case r.DueDate == nil || strings.TrimSpace(*r.DueDate) == "":
		p.ClearDueDate = true
	default:
		d, err := models.ParseDueDate(*r.DueDate)
		if err != nil {
			return p, err
		}
		p.DueDate = &d
	}
	return p, nil
}

// readBody returns at most maxBodyBytes of the request body.
func readBody(c echo.Context) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return nil, errBadBody
	}
	if len(raw) > maxBodyBytes {
		return nil, fmt.Errorf("%w: request body too large", common.ErrorValidation)
	}
	return raw, nil
}

// decodeStrict decodes raw into dst. raw must hold exactly one JSON value
// whose fields are all known to dst.
func decodeStrict(raw []byte, dst any) error {
	if !sonic.ConfigStd.Valid(raw) {
		return errBadBody
	}
	dec := sonic.ConfigStd.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadBody
	}
	return nil
}

func decodeJSON(c echo.Context, dst any) error {
	raw, err := readBody(c)
	if err != nil {
		return err
	}
	return decodeStrict(raw, dst)
}

func decodeUpdate(c echo.Context) (*updateTaskRequest, error) {
	raw, err := readBody(c)
	if err != nil {
		return nil, err
	}

	var req updateTaskRequest
	if err := decodeStrict(raw, &req); err != nil {
		return nil, err
	}

	// A second pass tells an explicit null dueDate apart from an absent one.
	var fields map[string]any
	if err := sonic.ConfigStd.Unmarshal(raw, &fields); err != nil {
		return nil, errBadBody
	}
	_, req.dueDateSent = fields["dueDate"]

	return &req, nil
}
