package config

type NotificationsConfig struct {
	Service NotificationService `koanf:"service"`

	// Detailed controls whether one embed per relinked inode is sent,
	// instead of a single summary embed.
	Detailed bool `koanf:"detailed"`

	// SkipEmptyRun suppresses the notification when nothing was relinked.
	SkipEmptyRun bool `koanf:"skip_empty_run"`
}

type NotificationService struct {
	Discord string `koanf:"discord"`
}
