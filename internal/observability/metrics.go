package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MHTTPRateLimited         MetricKey = "http_rate_limited_total"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"

	MDrinksSold      MetricKey = "vending_drinks_sold_total"
	MRevenue         MetricKey = "vending_revenue_total"
	MChangeDispensed MetricKey = "vending_change_dispensed_total"
	MRefills         MetricKey = "vending_refills_total"
	MRejections      MetricKey = "vending_rejections_total"
	MFundsLoaded     MetricKey = "vending_funds_loaded_total"
)
