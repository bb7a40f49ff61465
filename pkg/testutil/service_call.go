package testutil

import "blindscontrol/internal/ha"

// FilterServiceCalls filters service calls by domain and service
func FilterServiceCalls(calls []ha.RecordedCall, domain, service string) []ha.RecordedCall {
	var filtered []ha.RecordedCall
	for _, call := range calls {
		if call.Domain == domain && call.Service == service {
			filtered = append(filtered, call)
		}
	}
	return filtered
}

// FindServiceCallWithData finds the latest service call with a matching data key/value
func FindServiceCallWithData(calls []ha.RecordedCall, domain, service, dataKey string, dataValue interface{}) *ha.RecordedCall {
	for i := len(calls) - 1; i >= 0; i-- {
		call := calls[i]
		if call.Domain == domain && call.Service == service {
			if val, ok := call.Data[dataKey]; ok && val == dataValue {
				return &call
			}
		}
	}
	return nil
}
