package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
)

func TestPageRequestNormalize(t *testing.T) {
	tests := []struct {
		in         PageRequest
		want       PageRequest
		wantOffset int
	}{
		{in: PageRequest{}, want: PageRequest{Page: 1, PageSize: DefaultPageSize}, wantOffset: 0},
		{in: PageRequest{Page: -3, PageSize: 5}, want: PageRequest{Page: 1, PageSize: 5}, wantOffset: 0},
		{in: PageRequest{Page: 3, PageSize: 0}, want: PageRequest{Page: 3, PageSize: DefaultPageSize}, wantOffset: 2 * DefaultPageSize},
		{in: PageRequest{Page: 2, PageSize: MaxPageSize * 3}, want: PageRequest{Page: 2, PageSize: MaxPageSize}, wantOffset: MaxPageSize},
	}
	for _, tc := range tests {
		if got := tc.in.Normalize(); got != tc.want {
			t.Fatalf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
		if got := tc.in.Offset(); got != tc.wantOffset {
			t.Fatalf("Offset(%+v) = %d, want %d", tc.in, got, tc.wantOffset)
		}
	}
}

func TestTotalPages(t *testing.T) {
	for _, tc := range []struct {
		total    int64
		pageSize int
		want     int
	}{
		{0, 10, 0},
		{10, 0, 0},
		{1, 20, 1},
		{40, 20, 2},
		{41, 20, 3},
	} {
		if got := totalPages(tc.total, tc.pageSize); got != tc.want {
			t.Fatalf("totalPages(%d, %d) = %d, want %d", tc.total, tc.pageSize, got, tc.want)
		}
	}
}

func TestPaginateFiltersAndPastLastPage(t *testing.T) {
	db := newDBForTest(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		u := seedUser(t, repo, fmt.Sprintf("admin-%d", i), fmt.Sprintf("admin%d@example.com", i))
		u.Role = domain.RoleAdmin
		if err := db.Save(u).Error; err != nil {
			t.Fatalf("promote: %v", err)
		}
	}
	seedUser(t, repo, "plain", "plain@example.com")

	admins, err := paginate[domain.User](ctx, db.Model(&domain.User{}).Where("role = ?", domain.RoleAdmin), PageRequest{Page: 1, PageSize: 2}, "id ASC")
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if admins.Total != 3 || admins.TotalPages != 2 || len(admins.Items) != 2 || admins.Items[0].ID != "admin-0" {
		t.Fatalf("unexpected admin page: %+v", admins)
	}

	empty, err := paginate[domain.User](ctx, db.Model(&domain.User{}), PageRequest{Page: 9, PageSize: 2}, "id ASC")
	if err != nil {
		t.Fatalf("paginate past end: %v", err)
	}
	if empty.Total != 4 || len(empty.Items) != 0 || empty.Items == nil {
		t.Fatalf("expected empty non-nil items past the last page, got %+v", empty)
	}
}

func FuzzPageRequestNormalize(f *testing.F) {
	f.Add(0, 0)
	f.Add(-1, -1)
	f.Add(10, MaxPageSize+50)
	f.Fuzz(func(t *testing.T, page, pageSize int) {
		got := PageRequest{Page: page, PageSize: pageSize}.Normalize()
		if got.Page < 1 || got.PageSize < 1 || got.PageSize > MaxPageSize {
			t.Fatalf("out of bounds: %+v", got)
		}
		if got.Normalize() != got {
			t.Fatalf("Normalize not idempotent: %+v", got)
		}
	})
}
