package domain

// InstalledApp is an application the device registry reports as launchable.
type InstalledApp struct {
	PackageName string
	AppName     string
	IconPath    *string
}
