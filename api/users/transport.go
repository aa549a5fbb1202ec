package users

import (
	"context"
	"net/http"

	"github.com/MashSoftware/diary-api/api/shared"
	"github.com/MashSoftware/diary-api/common/store"

	"github.com/go-kit/kit/endpoint"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
)

type UserTransport struct {
	Id           *string  `json:"id"`
	Password     *string  `json:"password,omitempty" validate:"required,max=72"`
	FirstName    *string  `json:"first_name" validate:"required,min=1,max=255"`
	LastName     *string  `json:"last_name" validate:"required,min=1,max=255"`
	EmailAddress *string  `json:"email_address" validate:"required,max=320,mailbox"`
	ActivatedAt  *string  `json:"activated_at"`
	LoginAt      *string  `json:"login_at"`
	Children     []string `json:"children"`
	CreatedAt    *string  `json:"created_at"`
	UpdatedAt    *string  `json:"updated_at"`
}

func (u UserTransport) Location() string {
	return "/v1/users/" + *u.Id
}

// UpdateUserTransport carries a partial update. Password is the user's
// current password and is always required.
type UpdateUserTransport struct {
	Id           string   `json:"-"`
	Password     *string  `json:"password" validate:"required"`
	NewPassword  *string  `json:"new_password" validate:"omitempty,max=72"`
	FirstName    *string  `json:"first_name" validate:"omitempty,min=1,max=255"`
	LastName     *string  `json:"last_name" validate:"omitempty,min=1,max=255"`
	EmailAddress *string  `json:"email_address" validate:"omitempty,max=320,mailbox"`
	Children     []string `json:"children" validate:"omitempty,dive,uuid4"`
}

type listRequest struct {
	EmailAddress string
}

type HandlerFactory struct {
	Service Service `inject:""`
}

func (h *HandlerFactory) Add(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeAddEndpoint(h.Service),
		decodeUserRequest,
		shared.EncodeResponse201,
		opts...,
	)
}

func (h *HandlerFactory) Get(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeGetEndpoint(h.Service),
		decodeUserIdRequest,
		shared.EncodeResponse200,
		opts...,
	)
}

func (h *HandlerFactory) List(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeListEndpoint(h.Service),
		decodeListRequest,
		shared.EncodeResponse200,
		opts...,
	)
}

func (h *HandlerFactory) Update(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeUpdateEndpoint(h.Service),
		decodeUpdateUserRequest,
		shared.EncodeResponse200,
		opts...,
	)
}

func (h *HandlerFactory) Delete(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeDeleteEndpoint(h.Service),
		decodeUserIdRequest,
		shared.EncodeResponse204,
		opts...,
	)
}

func makeAddEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(UserTransport)

		createdUser, err := svc.AddUser(ctx, req)
		if err != nil {
			return nil, err
		}

		return DbToTransport(createdUser), nil
	}
}

func makeGetEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		userId := request.(string)

		user, err := svc.GetUser(ctx, userId)
		if err != nil {
			return nil, err
		}

		return DbToTransport(user), nil
	}
}

func makeListEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(listRequest)

		if req.EmailAddress != "" {
			user, err := svc.GetUserByEmail(ctx, req.EmailAddress)
			if err != nil {
				return nil, err
			}
			return DbToTransport(user), nil
		}

		users, err := svc.ListUsers(ctx)
		if err != nil {
			return nil, err
		}

		allUsers := []UserTransport{}
		for _, user := range users {
			allUsers = append(allUsers, DbToTransport(user))
		}
		return allUsers, nil
	}
}

func makeUpdateEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(UpdateUserTransport)

		user, err := svc.UpdateUser(ctx, req)
		if err != nil {
			return nil, err
		}

		return DbToTransport(user), nil
	}
}

func makeDeleteEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		userId := request.(string)

		if _, err := svc.DeleteUser(ctx, userId); err != nil {
			return nil, err
		}

		return nil, nil
	}
}

func decodeUserRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var request UserTransport
	if err := shared.DecodeJson(r, &request); err != nil {
		return nil, err
	}
	return request, nil
}

func decodeUserIdRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return userIdFromPath(r)
}

func decodeListRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return listRequest{EmailAddress: r.URL.Query().Get("email_address")}, nil
}

func decodeUpdateUserRequest(_ context.Context, r *http.Request) (interface{}, error) {
	userId, err := userIdFromPath(r)
	if err != nil {
		return nil, err
	}
	var request UpdateUserTransport
	if err := shared.DecodeJson(r, &request); err != nil {
		return nil, err
	}
	request.Id = userId
	return request, nil
}

func userIdFromPath(r *http.Request) (string, error) {
	vars := mux.Vars(r)
	id, ok := vars["userId"]
	if !ok {
		return "", shared.ErrBadRouting
	}
	return shared.ParseId(id)
}

// encode errors from business-logic
func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	shared.EncodeErrorWithStatus(w, shared.StatusOf(err), err)
}

func DbToTransport(user store.User) UserTransport {
	children := user.Children
	if children == nil {
		children = []string{}
	}
	transport := UserTransport{
		Id:           &user.UserId.String,
		FirstName:    &user.FirstName.String,
		LastName:     &user.LastName.String,
		EmailAddress: &user.EmailAddress.String,
		Children:     children,
		CreatedAt:    stringPtr(shared.FormatTime(user.CreatedAt)),
	}
	if user.ActivatedAt.Valid {
		transport.ActivatedAt = stringPtr(shared.FormatTime(user.ActivatedAt.Time))
	}
	if user.LoginAt.Valid {
		transport.LoginAt = stringPtr(shared.FormatTime(user.LoginAt.Time))
	}
	if user.UpdatedAt.Valid {
		transport.UpdatedAt = stringPtr(shared.FormatTime(user.UpdatedAt.Time))
	}
	return transport
}

func stringPtr(s string) *string {
	return &s
}
