package echoapi

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tutorhub/backend/core"
)

type contactApi struct {
	mailSvc  core.EmailService
	validate *validator.Validate
}

// registerContactAPI exposes the public contact form. Each submission gets a
// reference ID the office can quote back to the sender.
func registerContactAPI(g *echo.Group, mailSvc core.EmailService, validate *validator.Validate) {
	api := contactApi{mailSvc: mailSvc, validate: validate}
	g.POST("/contact", api.submit)
}

func (api *contactApi) submit(ctx echo.Context) error {
	var data ContactRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContactRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ref := uuid.New().String()
	api.mailSvc.SendMessages(
		&core.EmailMessage{
			To:      []mail.Address{{Address: core.Conf.ContactEmail}},
			Subject: fmt.Sprintf("Contact form [%s]: %s", ref, data.Subject),
			BodyStr: fmt.Sprintf("From: %s <%s>\n\n%s", data.Name, data.Email, data.Message),
		},
	)
	return ctx.JSON(http.StatusAccepted, ContactResponse{Reference: ref})
}

type (
	ContactRequest struct {
		Name    string `json:"name" validate:"required"`
		Email   string `json:"email" validate:"required,email"`
		Subject string `json:"subject" validate:"required"`
		Message string `json:"message" validate:"required"`
	}

	ContactResponse struct {
		Reference string `json:"reference"`
	}
)

func (cr *ContactRequest) Validate(validate *validator.Validate) error {
	cr.Name = core.CleanString(cr.Name)
	cr.Email = core.CleanString(cr.Email)
	cr.Subject = core.CleanString(cr.Subject)
	return validate.Struct(cr)
}
