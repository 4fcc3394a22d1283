package marketplace

// Wire types for the seller API. JSON names follow the marketplace contract.

// CardsCursor pages through the product catalogue. Zero value starts from the top.
type CardsCursor struct {
	UpdatedAt string `json:"updatedAt,omitempty"`
	NmID      int64  `json:"nmID,omitempty"`
	Limit     int    `json:"limit"`
}

type Card struct {
	NmID        int64  `json:"nmID"`
	ImtID       int64  `json:"imtID"`
	NmUUID      string `json:"nmUUID"`
	SubjectID   int64  `json:"subjectID"`
	SubjectName string `json:"subjectName"`
	VendorCode  string `json:"vendorCode"`
	Brand       string `json:"brand"`
	Title       string `json:"title"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type CardsPage struct {
	Cards  []Card `json:"cards"`
	Cursor struct {
		UpdatedAt string `json:"updatedAt"`
		NmID      int64  `json:"nmID"`
		Total     int    `json:"total"`
	} `json:"cursor"`
}

// NmReportCard is one product's statistics for a single report date.
type NmReportCard struct {
	NmID       int64  `json:"nmID"`
	VendorCode string `json:"vendorCode"`
	Statistics struct {
		SelectedPeriod struct {
			OpenCardCount    int64   `json:"openCardCount"`
			AddToCartCount   int64   `json:"addToCartCount"`
			OrdersCount      int64   `json:"ordersCount"`
			OrdersSumRub     float64 `json:"ordersSumRub"`
			BuyoutsCount     int64   `json:"buyoutsCount"`
			BuyoutsSumRub    float64 `json:"buyoutsSumRub"`
			CancelCount      int64   `json:"cancelCount"`
			CancelSumRub     float64 `json:"cancelSumRub"`
			AvgPriceRub      float64 `json:"avgPriceRub"`
			AvgOrdersCountPerDay float64 `json:"avgOrdersCountPerDay"`
		} `json:"selectedPeriod"`
	} `json:"statistics"`
}

type NmReportPage struct {
	Data struct {
		Page       int            `json:"page"`
		IsNextPage bool           `json:"isNextPage"`
		Cards      []NmReportCard `json:"cards"`
	} `json:"data"`
}

type StockItem struct {
	NmID       int64  `json:"nmID"`
	VendorCode string `json:"vendorCode"`
	Metrics    struct {
		StockCount    int64   `json:"stockCount"`
		ToClientCount int64   `json:"toClientCount"`
		FromClientCount int64 `json:"fromClientCount"`
		SaleRate      float64 `json:"saleRate"`
		AvgOrders     float64 `json:"avgOrders"`
	} `json:"metrics"`
}

type stockReportResponse struct {
	Data struct {
		Items []StockItem `json:"items"`
	} `json:"data"`
}

// Sale is one row of the supplier sales feed. SaleID's first letter encodes
// the operation kind (sale, return, ...).
type Sale struct {
	SaleID          string  `json:"saleID"`
	LastChangeDate  string  `json:"lastChangeDate"`
	Date            string  `json:"date"`
	NmID            int64   `json:"nmId"`
	Barcode         string  `json:"barcode"`
	TotalPrice      float64 `json:"totalPrice"`
	DiscountPercent float64 `json:"discountPercent"`
	ForPay          float64 `json:"forPay"`
	FinishedPrice   float64 `json:"finishedPrice"`
	PriceWithDisc   float64 `json:"priceWithDisc"`
	WarehouseName   string  `json:"warehouseName"`
	CountryName     string  `json:"countryName"`
	OblastOkrugName string  `json:"oblastOkrugName"`
	RegionName      string  `json:"regionName"`
}

// AdvertListEntry is one campaign id inside a promotion/count bucket.
type AdvertListEntry struct {
	AdvertID   int64  `json:"advertId"`
	ChangeTime string `json:"changeTime"`
}

type advertCountBucket struct {
	Type       int               `json:"type"`
	Status     int               `json:"status"`
	Count      int               `json:"count"`
	AdvertList []AdvertListEntry `json:"advert_list"`
}

type promotionCountResponse struct {
	Adverts []advertCountBucket `json:"adverts"`
	All     int                 `json:"all"`
}

// AdvertSummary is a flattened campaign reference with its bucket's type/status.
type AdvertSummary struct {
	AdvertID   int64
	Type       int
	Status     int
	ChangeTime string
}

type AdvertDetail struct {
	AdvertID   int64  `json:"advertId"`
	Name       string `json:"name"`
	Type       int    `json:"type"`
	Status     int    `json:"status"`
	DailyBudget int64 `json:"dailyBudget"`
	CreateTime string `json:"createTime"`
	ChangeTime string `json:"changeTime"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// StatsQuery asks fullstats for one campaign over explicit dates.
type StatsQuery struct {
	ID    int64    `json:"id"`
	Dates []string `json:"dates"`
}

type AdvertStatsNm struct {
	NmID     int64   `json:"nmId"`
	Name     string  `json:"name"`
	Views    int64   `json:"views"`
	Clicks   int64   `json:"clicks"`
	CTR      float64 `json:"ctr"`
	CPC      float64 `json:"cpc"`
	Sum      float64 `json:"sum"`
	Atbs     int64   `json:"atbs"`
	Orders   int64   `json:"orders"`
	CR       float64 `json:"cr"`
	Shks     int64   `json:"shks"`
	SumPrice float64 `json:"sum_price"`
}

type AdvertStatsApp struct {
	AppType int             `json:"appType"`
	Nm      []AdvertStatsNm `json:"nm"`
}

type AdvertStatsDay struct {
	Date string           `json:"date"`
	Apps []AdvertStatsApp `json:"apps"`
}

type AdvertStats struct {
	AdvertID int64            `json:"advertId"`
	Days     []AdvertStatsDay `json:"days"`
}
