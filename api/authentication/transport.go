package authentication

import (
	"context"
	"net/http"

	"github.com/MashSoftware/diary-api/api/shared"
	"github.com/MashSoftware/diary-api/api/users"

	"github.com/go-kit/kit/endpoint"
	kithttp "github.com/go-kit/kit/transport/http"
)

type LoginTransport struct {
	EmailAddress *string `json:"email_address" validate:"required,max=320,mailbox"`
	Password     *string `json:"password" validate:"required"`
}

type HandlerFactory struct {
	Service Service `inject:""`
}

func (h *HandlerFactory) Login(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeLoginEndpoint(h.Service),
		decodeLoginRequest,
		shared.EncodeResponse200,
		opts...,
	)
}

func makeLoginEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(LoginTransport)

		user, err := svc.Login(ctx, req)
		if err != nil {
			return nil, err
		}

		return users.DbToTransport(user), nil
	}
}

func decodeLoginRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var request LoginTransport
	if err := shared.DecodeJson(r, &request); err != nil {
		return nil, err
	}
	return request, nil
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	shared.EncodeErrorWithStatus(w, shared.StatusOf(err), err)
}
