package store_test

import (
	. "github.com/MashSoftware/diary-api/common/store"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

var _ = Describe("UserChildren", func() {

	var (
		f          *fixtures
		alice, bob User
		child      Child
	)

	BeforeEach(func() {
		f = newFixtures()
		alice = f.user()
		bob = f.user()
		child = f.child(alice.UserId.String)
	})

	AfterEach(func() {
		f.close()
	})

	Describe("LinkUserChild", func() {
		It("should link once and be idempotent", func() {
			created, err := f.store.LinkUserChild(nil, bob.UserId.String, child.ChildId.String)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			created, err = f.store.LinkUserChild(nil, bob.UserId.String, child.ChildId.String)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())

			Expect(f.count("user_children", "child_id = ?", child.ChildId.String)).To(Equal(2))
		})

		It("should return not found errors", func() {
			_, err := f.store.LinkUserChild(nil, "3f1c2a8e-5b0d-4c7a-9e21-6d1b4f2a9c30", child.ChildId.String)
			Expect(err).To(Equal(ErrUserNotFound))
			_, err = f.store.LinkUserChild(nil, bob.UserId.String, "3f1c2a8e-5b0d-4c7a-9e21-6d1b4f2a9c30")
			Expect(err).To(Equal(ErrChildNotFound))
		})
	})

	Describe("UnlinkUserChild", func() {
		It("should refuse to remove the last user", func() {
			err := f.store.UnlinkUserChild(nil, alice.UserId.String, child.ChildId.String)
			Expect(err).To(Equal(ErrChildWithoutUser))
			Expect(f.count("user_children", "child_id = ?", child.ChildId.String)).To(Equal(1))
		})

		It("should remove a link when another user remains", func() {
			_, err := f.store.LinkUserChild(nil, bob.UserId.String, child.ChildId.String)
			Expect(err).NotTo(HaveOccurred())

			Expect(f.store.UnlinkUserChild(nil, alice.UserId.String, child.ChildId.String)).To(Succeed())
			stored, err := f.store.GetChild(nil, child.ChildId.String)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Users).To(ConsistOf(bob.UserId.String))
		})

		It("should report a missing link", func() {
			err := f.store.UnlinkUserChild(nil, bob.UserId.String, child.ChildId.String)
			Expect(err).To(Equal(ErrLinkNotFound))
		})
	})

	Describe("ReplaceUserChildren", func() {
		var other Child

		BeforeEach(func() {
			other = f.child(bob.UserId.String)
		})

		It("should add and remove links", func() {
			_, err := f.store.LinkUserChild(nil, bob.UserId.String, child.ChildId.String)
			Expect(err).NotTo(HaveOccurred())

			Expect(f.store.ReplaceUserChildren(nil, alice.UserId.String, []string{other.ChildId.String})).To(Succeed())

			user, err := f.store.GetUser(nil, alice.UserId.String)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Children).To(ConsistOf(other.ChildId.String))
		})

		It("should refuse to orphan a child", func() {
			err := f.store.ReplaceUserChildren(nil, alice.UserId.String, []string{})
			Expect(errors.Cause(err)).To(Equal(ErrChildWithoutUser))
		})

		It("should refuse an unknown child", func() {
			err := f.store.ReplaceUserChildren(nil, alice.UserId.String, []string{child.ChildId.String, "3f1c2a8e-5b0d-4c7a-9e21-6d1b4f2a9c30"})
			Expect(errors.Cause(err)).To(Equal(ErrInvalidChildId))
		})
	})
})
