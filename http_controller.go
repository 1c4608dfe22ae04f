package auth

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// AuthController exposes the account workflows over HTTP. Handlers bind a
// typed payload, validate it, run the workflow, and hand results to the
// RouteAuthenticator; every failure propagates to the boundary
// ErrorHandler.
type AuthController struct {
	Debug    bool
	Logger   Logger
	Auther   *Auther
	HTTP     *RouteAuthenticator
	BasePath string
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defLogger{},
		BasePath: "/api/v1/secondchic",
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Auther in auth controller...")
	}

	if c.HTTP == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

func WithAuther(auther *Auther) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithHTTPAuthenticator(http *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.HTTP = http
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = logger
		return c
	}
}

func WithBasePath(basePath string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.BasePath = basePath
		return c
	}
}

func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// RegisterAuthRoutes mounts the auth endpoints on the given router. The
// guard must run ahead of logout and profile.
func RegisterAuthRoutes(router fiber.Router, controller *AuthController, guard fiber.Handler) {
	router.Post("/signup", controller.SignupPost)
	router.Post("/login", controller.LoginPost)
	router.Post("/logout", guard, controller.LogoutPost)
	router.Get("/profile", guard, controller.ProfileGet)
	router.Get("/confirmemail", controller.ConfirmEmailGet)
	router.Post("/forgot", controller.ForgotPost)
	router.Put("/resetpassword/:resettoken", controller.ResetPasswordPut)
}

// SignupRequest payload
type SignupRequest struct {
	FirstName string `json:"firstName" form:"firstName"`
	LastName  string `json:"lastName" form:"lastName"`
	Email     string `json:"email" form:"email"`
	Phone     string `json:"phone" form:"phone"`
	DOB       string `json:"dob" form:"dob"`
	Password  string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Required, validation.Length(1, 20)),
		validation.Field(&r.DOB, validation.Date("2006-01-02")),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func (a *AuthController) SignupPost(c *fiber.Ctx) error {
	payload := new(SignupRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("signup parse payload", "error", err)
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "Invalid request body").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Info("signup validate payload", "error", err)
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithCode(goerrors.CodeBadRequest)
	}

	if a.Debug {
		a.Logger.Debug("signup payload", "payload", print.MaybePrettyJSON(payload))
	}

	var dob *time.Time
	if payload.DOB != "" {
		parsed, err := time.Parse("2006-01-02", payload.DOB)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "dob must be formatted as YYYY-MM-DD").
				WithCode(goerrors.CodeBadRequest)
		}
		dob = &parsed
	}

	res, err := a.Auther.Signup(c.UserContext(), SignupMessage{
		FirstName:           payload.FirstName,
		LastName:            payload.LastName,
		Email:               payload.Email,
		Phone:               payload.Phone,
		DOB:                 dob,
		Password:            payload.Password,
		ConfirmEmailBaseURL: a.confirmEmailBaseURL(c),
	})
	if err != nil {
		return err
	}

	return a.HTTP.SendTokenResponse(c, res)
}

// LoginRequest payload; username may be an email or a phone number.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return ErrMissingCredentials
	}

	if payload.Username == "" || payload.Password == "" {
		return ErrMissingCredentials
	}

	res, err := a.Auther.Login(c.UserContext(), payload.Username, payload.Password)
	if err != nil {
		return err
	}

	return a.HTTP.SendTokenResponse(c, res)
}

func (a *AuthController) LogoutPost(c *fiber.Ctx) error {
	a.HTTP.Logout(c)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{},
	})
}

func (a *AuthController) ProfileGet(c *fiber.Ctx) error {
	claims, ok := GetClaims(c.UserContext())
	if !ok {
		return ErrUnableToFindSession
	}

	user, err := a.Auther.IdentityFromClaims(c.UserContext(), claims)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    user.View(),
	})
}

func (a *AuthController) ConfirmEmailGet(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	res, err := a.Auther.ConfirmEmail(c.UserContext(), token)
	if err != nil {
		return err
	}

	return a.HTTP.SendTokenResponse(c, res)
}

// ForgotRequest payload
type ForgotRequest struct {
	Email string `json:"email" form:"email"`
}

// Validate will run validation rules
func (r ForgotRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ForgotPost(c *fiber.Ctx) error {
	payload := new(ForgotRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("forgot parse payload", "error", err)
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "Invalid request body").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithCode(goerrors.CodeBadRequest)
	}

	if err := a.Auther.ForgotPassword(c.UserContext(), payload.Email, a.resetPasswordBaseURL(c)); err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    "Email sent",
	})
}

// ResetPasswordRequest payload
type ResetPasswordRequest struct {
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func (a *AuthController) ResetPasswordPut(c *fiber.Ctx) error {
	payload := new(ResetPasswordRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("reset password parse payload", "error", err)
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "Invalid request body").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithCode(goerrors.CodeBadRequest)
	}

	res, err := a.Auther.ResetPassword(c.UserContext(), c.Params("resettoken"), payload.Password)
	if err != nil {
		return err
	}

	return a.HTTP.SendTokenResponse(c, res)
}

func (a *AuthController) confirmEmailBaseURL(c *fiber.Ctx) string {
	return fmt.Sprintf("%s://%s%s/auth/confirmemail?token=", c.Protocol(), c.Hostname(), a.BasePath)
}

func (a *AuthController) resetPasswordBaseURL(c *fiber.Ctx) string {
	return fmt.Sprintf("%s://%s%s/auth/resetpassword/", c.Protocol(), c.Hostname(), a.BasePath)
}
