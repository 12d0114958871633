package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Registry            = (*DetectorRegistry)(nil)
	_ IdentityService     = (*Service)(nil)
	_ IdentityPersistence = (*KeyValuePersistence)(nil)
	_ KeyValueStore       = (*MemoryKeyValueStore)(nil)
	_ subscriptionBinder  = (*ActiveIdentityStore)(nil)
	_ Clock               = SystemClock{}
	_ Clock               = (*ManualClock)(nil)
	_ MetricsRecorder     = NopMetricsRecorder{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
