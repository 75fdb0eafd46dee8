package logging

import "fmt"

// GenerateLogrotateConfig creates a logrotate configuration for the daemon.
// Intended to be written to /etc/logrotate.d/usher.
func GenerateLogrotateConfig(component string) string {
	return fmt.Sprintf(`# Logrotate configuration for usher %s
# Install: sudo cp this file to /etc/logrotate.d/usher-%s

/var/log/usher/%s.log {
    daily
    rotate 14
    compress
    delaycompress
    missingok
    notifempty

    # Keep rotated logs group-readable like the live log
    create 0660 usher usher

    sharedscripts
    postrotate
        systemctl reload %s 2>/dev/null || true
    endscript
}
`, component, component, component, component)
}
