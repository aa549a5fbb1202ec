package authentication_test

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/MashSoftware/diary-api/api/authentication"
	"github.com/MashSoftware/diary-api/api/shared/mocks"
	"github.com/MashSoftware/diary-api/common/credentials"
	"github.com/MashSoftware/diary-api/common/log"
	"github.com/MashSoftware/diary-api/common/store"
	"github.com/MashSoftware/diary-api/common/store/storetest"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const userId = "8f5c1a3e-2b7d-4e9a-8c61-0d3f2b9a7e41"

var _ = Describe("Transport", func() {

	var (
		router   *mux.Router
		recorder *httptest.ResponseRecorder

		concreteStore *store.Store
		concreteDb    *gorm.DB

		httpBodyToUse string
	)

	var (
		assertHttpCode = func(code int) {
			It(fmt.Sprintf("should respond with status code %d", code), func() {
				Expect(recorder.Code).To(Equal(code))
			})
		}
	)

	BeforeEach(func() {
		concreteDb = storetest.NewDbInstance(false)
		mockStringGenerator := &mocks.MockStringGenerator{}
		mockStringGenerator.On("GenerateUuid").Return(userId)

		concreteStore = &store.Store{
			Db:              concreteDb,
			StringGenerator: mockStringGenerator,
		}

		handlerFactory := HandlerFactory{
			Service: &AuthenticationService{
				Store:  concreteStore,
				Logger: log.NewLogger("diary"),
			},
		}
		router = mux.NewRouter()
		router.Handle("/v1/login", handlerFactory.Login([]kithttp.ServerOption{
			kithttp.ServerErrorEncoder(EncodeError),
		})).Methods(http.MethodPost)
		recorder = httptest.NewRecorder()

		credential, err := credentials.Hash("cat123")
		Expect(err).NotTo(HaveOccurred())
		_, err = concreteStore.AddUser(nil, store.User{
			Password:     sql.NullString{String: credential, Valid: true},
			FirstName:    sql.NullString{String: "Sansa", Valid: true},
			LastName:     sql.NullString{String: "Stark", Valid: true},
			EmailAddress: sql.NullString{String: "sansa@winterfell.com", Valid: true},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		storetest.Close(concreteDb)
	})

	JustBeforeEach(func() {
		req, _ := http.NewRequest(http.MethodPost, "/v1/login", strings.NewReader(httpBodyToUse))
		router.ServeHTTP(recorder, req)
	})

	Context("with the right password", func() {
		BeforeEach(func() {
			httpBodyToUse = `{"email_address": "Sansa@Winterfell.com", "password": "cat123"}`
		})
		assertHttpCode(http.StatusOK)
		It("should record the login", func() {
			Expect(recorder.Body.String()).To(ContainSubstring(`"id":"` + userId + `"`))
			user, err := concreteStore.GetUser(nil, userId)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.LoginAt.Valid).To(BeTrue())
			Expect(user.UpdatedAt.Valid).To(BeFalse())
		})
	})

	Context("with a wrong password", func() {
		BeforeEach(func() {
			httpBodyToUse = `{"email_address": "sansa@winterfell.com", "password": "dog123"}`
		})
		assertHttpCode(http.StatusUnauthorized)
		It("should not record the login", func() {
			user, _ := concreteStore.GetUser(nil, userId)
			Expect(user.LoginAt.Valid).To(BeFalse())
		})
	})

	Context("with an unknown email", func() {
		var wrongPasswordBody string

		BeforeEach(func() {
			httpBodyToUse = `{"email_address": "nobody@winterfell.com", "password": "cat123"}`

			other := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/v1/login", strings.NewReader(`{"email_address": "sansa@winterfell.com", "password": "dog123"}`))
			router.ServeHTTP(other, req)
			wrongPasswordBody = other.Body.String()
		})
		assertHttpCode(http.StatusUnauthorized)
		It("should answer exactly like a wrong password", func() {
			Expect(recorder.Body.String()).To(Equal(wrongPasswordBody))
		})
	})

	Context("without password", func() {
		BeforeEach(func() {
			httpBodyToUse = `{"email_address": "sansa@winterfell.com"}`
		})
		assertHttpCode(http.StatusBadRequest)
	})
})
