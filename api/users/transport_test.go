package users_test

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/MashSoftware/diary-api/api/shared/mocks"
	. "github.com/MashSoftware/diary-api/api/users"
	"github.com/MashSoftware/diary-api/common/credentials"
	"github.com/MashSoftware/diary-api/common/log"
	"github.com/MashSoftware/diary-api/common/messaging"
	"github.com/MashSoftware/diary-api/common/store"
	"github.com/MashSoftware/diary-api/common/store/storetest"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"
)

const (
	existingUserId = "8f5c1a3e-2b7d-4e9a-8c61-0d3f2b9a7e41"
	newUserId      = "1d2e3f40-5a6b-4c7d-8e9f-a0b1c2d3e4f5"
	childId        = "5b9e2c71-3f4a-4d8e-b612-7a0c9d3e1f28"
	unknownId      = "3f1c2a8e-5b0d-4c7a-9e21-6d1b4f2a9c30"
)

var _ = Describe("Transport", func() {

	var (
		router   *mux.Router
		recorder *httptest.ResponseRecorder

		concreteStore       *store.Store
		concreteDb          *gorm.DB
		mockStringGenerator *mocks.MockStringGenerator
		mockPublisher       *mocks.MockPublisher

		httpMethodToUse, httpEndpointToUse, httpBodyToUse string
	)

	var (
		assertHttpCode = func(code int) {
			It(fmt.Sprintf("should respond with status code %d", code), func() {
				Expect(recorder.Code).To(Equal(code))
			})
		}

		assertJsonResponse = func(response string) {
			It("should respond with json response", func() {
				Expect(recorder.Header().Get("Content-Type")).To(ContainSubstring("application/json"))
				Expect(withoutTimestamps(recorder.Body.String())).To(MatchJSON(response))
			})
		}

		assertErrorContains = func(message string) {
			It("should explain the error", func() {
				Expect(recorder.Body.String()).To(ContainSubstring(message))
			})
		}

		storedUser = func(userId string) (store.User, error) {
			return concreteStore.GetUser(nil, userId)
		}
	)

	BeforeEach(func() {
		concreteDb = storetest.NewDbInstance(false)
		mockStringGenerator = &mocks.MockStringGenerator{}
		mockStringGenerator.On("GenerateUuid").Return(existingUserId).Once()
		mockStringGenerator.On("GenerateUuid").Return(newUserId).Once()
		mockStringGenerator.On("GenerateUuid").Return(childId).Once()

		mockPublisher = &mocks.MockPublisher{}
		mockPublisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

		concreteStore = &store.Store{
			Db:              concreteDb,
			StringGenerator: mockStringGenerator,
		}

		userService := &UserService{
			Store:     concreteStore,
			Publisher: mockPublisher,
			Logger:    log.NewLogger("diary"),
		}

		opts := []kithttp.ServerOption{
			kithttp.ServerErrorEncoder(EncodeError),
		}
		handlerFactory := HandlerFactory{
			Service: userService,
		}

		router = mux.NewRouter()
		router.Handle("/v1/users", handlerFactory.Add(opts)).Methods(http.MethodPost)
		router.Handle("/v1/users", handlerFactory.List(opts)).Methods(http.MethodGet)
		router.Handle("/v1/users/{userId}", handlerFactory.Get(opts)).Methods(http.MethodGet)
		router.Handle("/v1/users/{userId}", handlerFactory.Update(opts)).Methods(http.MethodPut, http.MethodPatch)
		router.Handle("/v1/users/{userId}", handlerFactory.Delete(opts)).Methods(http.MethodDelete)
		recorder = httptest.NewRecorder()

		credential, err := credentials.Hash("cat")
		Expect(err).NotTo(HaveOccurred())
		_, err = concreteStore.AddUser(nil, store.User{
			Password:     sql.NullString{String: credential, Valid: true},
			FirstName:    sql.NullString{String: "Arya", Valid: true},
			LastName:     sql.NullString{String: "Stark", Valid: true},
			EmailAddress: sql.NullString{String: "arya@winterfell.com", Valid: true},
		})
		Expect(err).NotTo(HaveOccurred())

		httpBodyToUse = ""
	})

	AfterEach(func() {
		storetest.Close(concreteDb)
	})

	JustBeforeEach(func() {
		req, _ := http.NewRequest(httpMethodToUse, httpEndpointToUse, strings.NewReader(httpBodyToUse))
		router.ServeHTTP(recorder, req)
	})

	Describe("CREATE", func() {

		BeforeEach(func() {
			httpMethodToUse = http.MethodPost
			httpEndpointToUse = "/v1/users"
		})

		Context("with a valid payload", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"password": "winter", "first_name": "jon", "last_name": "snow", "email_address": "Jon@NightsWatch.org"}`
			})
			assertHttpCode(http.StatusCreated)
			assertJsonResponse(`{
				"id": "` + newUserId + `",
				"first_name": "Jon",
				"last_name": "Snow",
				"email_address": "jon@nightswatch.org",
				"activated_at": null,
				"children": []
			}`)
			It("should set the location", func() {
				Expect(recorder.Header().Get("Location")).To(Equal("/v1/users/" + newUserId))
			})
			It("should store a credential, not the password", func() {
				user, err := storedUser(newUserId)
				Expect(err).NotTo(HaveOccurred())
				Expect(user.Password.String).NotTo(Equal("winter"))
				Expect(credentials.Verify("winter", user.Password.String)).To(BeTrue())
			})
		})

		Context("with an email registered in another case", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"password": "winter", "first_name": "arya", "last_name": "stark", "email_address": "ARYA@winterfell.com"}`
			})
			assertHttpCode(http.StatusConflict)
			assertErrorContains("'email_address' is already registered")
		})

		Context("with a malformed email", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"password": "winter", "first_name": "jon", "last_name": "snow", "email_address": "jon@"}`
			})
			assertHttpCode(http.StatusBadRequest)
			assertErrorContains("'email_address' failed on 'mailbox'")
		})

		Context("with a short password", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"password": "cat", "first_name": "jon", "last_name": "snow", "email_address": "jon@nightswatch.org"}`
			})
			assertHttpCode(http.StatusCreated)
			It("should accept it as the credential", func() {
				user, err := storedUser(newUserId)
				Expect(err).NotTo(HaveOccurred())
				Expect(credentials.Verify("cat", user.Password.String)).To(BeTrue())
			})
		})

		Context("without a password", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"first_name": "jon", "last_name": "snow", "email_address": "jon@nightswatch.org"}`
			})
			assertHttpCode(http.StatusBadRequest)
			assertErrorContains("'password' failed on 'required'")
		})

		Context("with a password longer than 72 bytes", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"password": "` + strings.Repeat("x", 73) + `", "first_name": "jon", "last_name": "snow", "email_address": "jon@nightswatch.org"}`
			})
			assertHttpCode(http.StatusBadRequest)
		})

		Context("with a broken json body", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"password": `
			})
			assertHttpCode(http.StatusBadRequest)
		})
	})

	Describe("GET", func() {

		BeforeEach(func() {
			httpMethodToUse = http.MethodGet
		})

		Context("an existing user", func() {
			BeforeEach(func() {
				httpEndpointToUse = "/v1/users/" + existingUserId
			})
			assertHttpCode(http.StatusOK)
			assertJsonResponse(`{
				"id": "` + existingUserId + `",
				"first_name": "Arya",
				"last_name": "Stark",
				"email_address": "arya@winterfell.com",
				"activated_at": null,
				"children": []
			}`)
		})

		Context("an unknown user", func() {
			BeforeEach(func() {
				httpEndpointToUse = "/v1/users/" + unknownId
			})
			assertHttpCode(http.StatusNotFound)
			assertErrorContains("user not found")
		})

		Context("a malformed id", func() {
			BeforeEach(func() {
				httpEndpointToUse = "/v1/users/42"
			})
			assertHttpCode(http.StatusBadRequest)
		})
	})

	Describe("LIST", func() {

		BeforeEach(func() {
			httpMethodToUse = http.MethodGet
			httpEndpointToUse = "/v1/users"
		})

		assertHttpCode(http.StatusOK)
		assertJsonResponse(`[{
			"id": "` + existingUserId + `",
			"first_name": "Arya",
			"last_name": "Stark",
			"email_address": "arya@winterfell.com",
			"activated_at": null,
			"children": []
		}]`)

		Context("filtered by email", func() {
			BeforeEach(func() {
				httpEndpointToUse = "/v1/users?email_address=ARYA@winterfell.com"
			})
			assertHttpCode(http.StatusOK)
			It("should return the single user", func() {
				Expect(recorder.Body.String()).To(ContainSubstring(`"id":"` + existingUserId + `"`))
				Expect(strings.HasPrefix(recorder.Body.String(), "{")).To(BeTrue())
			})
		})

		Context("filtered by an unknown email", func() {
			BeforeEach(func() {
				httpEndpointToUse = "/v1/users?email_address=nobody@winterfell.com"
			})
			assertHttpCode(http.StatusNotFound)
		})
	})

	Describe("UPDATE", func() {

		BeforeEach(func() {
			httpMethodToUse = http.MethodPatch
			httpEndpointToUse = "/v1/users/" + existingUserId
		})

		Context("with a wrong current password", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"password": "dog", "first_name": "arry"}`
			})
			assertHttpCode(http.StatusUnauthorized)
			assertErrorContains("invalid credentials")
			It("should not change the user", func() {
				user, _ := storedUser(existingUserId)
				Expect(user.FirstName.String).To(Equal("Arya"))
			})
		})

		Context("without the current password", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"first_name": "arry"}`
			})
			assertHttpCode(http.StatusBadRequest)
		})

		Context("with a new password equal to the current one", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"password": "cat", "new_password": "cat"}`
			})
			assertHttpCode(http.StatusBadRequest)
			assertErrorContains("new password must differ")
		})

		Context("with a new password", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"password": "cat", "new_password": "dog"}`
			})
			assertHttpCode(http.StatusOK)
			It("should replace the credential", func() {
				user, err := storedUser(existingUserId)
				Expect(err).NotTo(HaveOccurred())
				Expect(credentials.Verify("dog", user.Password.String)).To(BeTrue())
				Expect(credentials.Verify("cat", user.Password.String)).To(BeFalse())
				Expect(user.UpdatedAt.Valid).To(BeTrue())
			})
		})

		Context("with profile fields", func() {
			BeforeEach(func() {
				httpBodyToUse = `{"password": "cat", "first_name": "ARRY", "email_address": "Arry@KingsLanding.com"}`
			})
			assertHttpCode(http.StatusOK)
			assertJsonResponse(`{
				"id": "` + existingUserId + `",
				"first_name": "Arry",
				"last_name": "Stark",
				"email_address": "arry@kingslanding.com",
				"activated_at": null,
				"children": []
			}`)
		})

		Context("with children", func() {
			BeforeEach(func() {
				mockStringGenerator.ExpectedCalls = nil
				mockStringGenerator.On("GenerateUuid").Return(childId).Once()
				_, err := concreteStore.AddChild(nil, store.Child{
					FirstName:   sql.NullString{String: "Rickon", Valid: true},
					LastName:    sql.NullString{String: "Stark", Valid: true},
					DateOfBirth: store.Today(),
					Users:       []string{existingUserId},
				})
				Expect(err).NotTo(HaveOccurred())
			})

			Context("when dropping the only user of a child", func() {
				BeforeEach(func() {
					httpBodyToUse = `{"password": "cat", "children": []}`
				})
				assertHttpCode(http.StatusBadRequest)
				assertErrorContains("a child must keep at least one user")
			})

			Context("when naming an unknown child", func() {
				BeforeEach(func() {
					httpBodyToUse = `{"password": "cat", "children": ["` + childId + `", "` + unknownId + `"]}`
				})
				assertHttpCode(http.StatusBadRequest)
				assertErrorContains("not a valid child id")
			})
		})

		Context("an unknown user", func() {
			BeforeEach(func() {
				httpEndpointToUse = "/v1/users/" + unknownId
				httpBodyToUse = `{"password": "cat"}`
			})
			assertHttpCode(http.StatusUnauthorized)
			assertErrorContains("invalid credentials")
			It("should answer like a wrong password does", func() {
				Expect(recorder.Body.String()).NotTo(ContainSubstring("not found"))
			})
		})
	})

	Describe("DELETE", func() {

		BeforeEach(func() {
			httpMethodToUse = http.MethodDelete
			httpEndpointToUse = "/v1/users/" + existingUserId
		})

		Context("an existing user", func() {
			assertHttpCode(http.StatusNoContent)
			It("should delete the user", func() {
				_, err := storedUser(existingUserId)
				Expect(err).To(Equal(store.ErrUserNotFound))
			})
			It("should announce the deletion", func() {
				mockPublisher.AssertCalled(GinkgoT(), "Publish", mock.Anything, mock.MatchedBy(func(m messaging.Message) bool {
					return m.Type() == messaging.UserDeleted && strings.Contains(string(m.Data), existingUserId)
				}))
			})
		})

		Context("when the notification cannot be published", func() {
			BeforeEach(func() {
				mockPublisher.ExpectedCalls = nil
				mockPublisher.On("Publish", mock.Anything, mock.Anything).Return(fmt.Errorf("pubsub unavailable"))
			})
			assertHttpCode(http.StatusNoContent)
		})

		Context("an unknown user", func() {
			BeforeEach(func() {
				httpEndpointToUse = "/v1/users/" + unknownId
			})
			assertHttpCode(http.StatusNotFound)
			It("should not announce anything", func() {
				mockPublisher.AssertNotCalled(GinkgoT(), "Publish", mock.Anything, mock.Anything)
			})
		})
	})
})
