package domain

import (
	"fmt"
	"time"
)

// Kind tags the product type a ProductRef points at.
type Kind string

const (
	KindBook    Kind = "book"
	KindCourse  Kind = "course"
	KindWebinar Kind = "webinar"
	KindService Kind = "service"
)

// Kinds lists every product kind in registry order.
var Kinds = []Kind{KindBook, KindCourse, KindWebinar, KindService}

// ParseKind validates a kind tag arriving from a URL or metadata blob.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindBook, KindCourse, KindWebinar, KindService:
		return Kind(s), nil
	}
	return "", Validationf("invalid product kind %q", s)
}

// ProductRef is a tagged reference to a product of any kind.
type ProductRef struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

func (r ProductRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Product is the common shape shared by books, courses, webinars and
// services. SellerID is zero for platform-owned products without a seller.
type Product struct {
	Ref         ProductRef `json:"ref"`
	SellerID    int64      `json:"sellerId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	PriceCents  int64      `json:"priceCents"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
}
