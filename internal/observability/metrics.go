package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MStockAdjustments        MetricKey = "stock_adjustments_total"
	MOrderLifecycle          MetricKey = "orders_lifecycle_total"
	MLowStockAlerts          MetricKey = "low_stock_alerts_total"
	MBookStockLevel          MetricKey = "book_stock_level"
)
