package entity

// PaginationParams represents pagination request parameters
type PaginationParams struct {
	Page  int `json:"page" query:"page"`
	Limit int `json:"limit" query:"limit"`
}

// Pagination constants
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps the parameters to sane bounds.
func (p *PaginationParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	} else if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
}

// Offset returns the row offset for the current page.
func (p *PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PaginationMeta represents pagination metadata in responses
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
}

// NewPaginationMeta derives response metadata from the request and total.
func NewPaginationMeta(params PaginationParams, total int64) PaginationMeta {
	totalPages := int(total) / params.Limit
	if int(total)%params.Limit != 0 {
		totalPages++
	}
	return PaginationMeta{
		CurrentPage: params.Page,
		PerPage:     params.Limit,
		Total:       total,
		TotalPages:  totalPages,
	}
}

// PaginatedPaymentsResponse represents a paginated payment list
type PaginatedPaymentsResponse struct {
	Data       []*PaymentView `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}
