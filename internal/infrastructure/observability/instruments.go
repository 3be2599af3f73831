package observability

import (
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
)

type counterSpec struct {
	key    observability.MetricKey
	help   string
	labels []string
}

type histogramSpec struct {
	key    observability.MetricKey
	help   string
	labels []string
}

var counterSpecs = []counterSpec{
	{observability.MUsecaseRequests, "Total number of use case invocations.", []string{"use_case", "outcome"}},
	{observability.MHTTPRequests, "Total number of HTTP requests.", []string{"method", "route", "status"}},
	{observability.MHTTPRateLimited, "HTTP requests rejected by the rate limiter.", []string{"route"}},
	{observability.MExternalRequests, "Calls to collaborators outside the use case (event bus).", []string{"peer", "endpoint", "outcome"}},
	{observability.MDrinksSold, "Drinks sold per slot.", []string{"slot"}},
	{observability.MRevenue, "Sales revenue in whole currency units per slot.", []string{"slot"}},
	{observability.MChangeDispensed, "Change paid out from the coin pool.", nil},
	{observability.MRefills, "Units added by refills per slot.", []string{"slot"}},
	{observability.MRejections, "Rejected purchases and refills by reason.", []string{"operation", "reason"}},
	{observability.MFundsLoaded, "Operator-loaded funds per pool.", []string{"pool"}},
}

var histogramSpecs = []histogramSpec{
	{observability.MUsecaseDuration, "Duration of use case execution in seconds.", []string{"use_case"}},
	{observability.MHTTPRequestDuration, "Duration of HTTP requests in seconds.", []string{"method", "route", "status"}},
	{observability.MExternalRequestDuration, "Duration of calls to collaborators in seconds.", []string{"peer", "endpoint"}},
}

// Instruments registers every metric the service emits on reg and returns
// them keyed for New.
func Instruments(reg *prometrics.Registry) (map[observability.MetricKey]observability.Counter, map[observability.MetricKey]observability.Histogram) {
	counters := make(map[observability.MetricKey]observability.Counter, len(counterSpecs))
	for _, s := range counterSpecs {
		counters[s.key] = reg.Counter(string(s.key), s.help, s.labels...)
	}
	histograms := make(map[observability.MetricKey]observability.Histogram, len(histogramSpecs))
	for _, s := range histogramSpecs {
		histograms[s.key] = reg.Histogram(string(s.key), s.help, nil, s.labels...)
	}
	return counters, histograms
}

// NewWithRegistry is New with every service instrument registered on reg.
func NewWithRegistry(tracer observability.Tracer, logger observability.Logger, reg *prometrics.Registry) observability.Observability {
	counters, histograms := Instruments(reg)
	return New(tracer, logger, counters, histograms)
}
