package pagination

// PaginationStrategy abstracts how a page request turns into a query and how
// results turn into metadata, so a cursor strategy can slot in later without
// touching handlers or services.
type PaginationStrategy interface {
	CalculateQuery(params Params) QueryParams
	// BuildMetadata builds response metadata; hasMore is only meaningful
	// for cursor strategies and is ignored by OffsetStrategy.
	BuildMetadata(params Params, total int64, hasMore bool) Metadata
}

// QueryParams carries whichever query inputs the active strategy produces.
type QueryParams struct {
	Offset int
	Limit  int
	Cursor *string
	After  *string
}

// OffsetStrategy is plain OFFSET/LIMIT pagination with a total count query.
type OffsetStrategy struct{}

func (OffsetStrategy) CalculateQuery(params Params) QueryParams {
	return QueryParams{
		Offset: CalculateOffset(params.Page, params.Limit),
		Limit:  params.Limit,
	}
}

func (OffsetStrategy) BuildMetadata(params Params, total int64, _ bool) Metadata {
	return Metadata{
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: CalculateTotalPages(total, params.Limit),
	}
}
