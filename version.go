package centerline

// ServiceName identifies this service in logs, metrics, and job records.
const ServiceName = "centerline-service"

// Version is the service version, overridable at build time via
// -ldflags "-X github.com/surveyline/centerline-service.Version=...".
var Version = "0.4.0"
