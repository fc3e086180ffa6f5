package crawler

// searchRequest is the grid-search body the list endpoint expects.
type searchRequest struct {
	Parameters searchParameters `json:"parameters"`
	Search     searchValue      `json:"search"`
	Columns    []searchColumn   `json:"columns"`
	Order      []any            `json:"order"`
	Draw       int64            `json:"draw"`
	Start      int              `json:"start"`
	Length     int              `json:"length"`
}

type searchColumn struct {
	Data       *string     `json:"data"`
	Search     searchValue `json:"search"`
	Name       string      `json:"name"`
	Searchable bool        `json:"searchable"`
	Orderable  bool        `json:"orderable"`
}

type searchValue struct {
	Value string `json:"value"`
	Regex bool   `json:"regex"`
}

type searchParameters struct {
	MevzuatTur           string `json:"MevzuatTur"`
	YonetmelikMevzuatTur string `json:"YonetmelikMevzuatTur"`
	AranacakIfade        string `json:"AranacakIfade"`
	AranacakYer          string `json:"AranacakYer"`
	MevzuatNo            string `json:"MevzuatNo"`
	BaslangicTarihi      string `json:"BaslangicTarihi"`
	BitisTarihi          string `json:"BitisTarihi"`
	AntiForgeryToken     string `json:"antiforgerytoken"`
}

func (c *Client) buildSearchRequest(q PageQuery, token string) searchRequest {
	columns := make([]searchColumn, 3)
	for i := range columns {
		columns[i] = searchColumn{Searchable: true}
	}

	return searchRequest{
		Draw:    c.draw.Add(1),
		Columns: columns,
		Order:   []any{},
		Start:   q.Start,
		Length:  q.Length,
		Search:  searchValue{},
		Parameters: searchParameters{
			MevzuatTur:           q.DocumentType.String(),
			YonetmelikMevzuatTur: "OsmanliKanunu",
			AranacakIfade:        c.cfg.SearchPhrase,
			AranacakYer:          c.cfg.SearchField,
			AntiForgeryToken:     token,
		},
	}
}
