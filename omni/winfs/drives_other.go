//go:build !windows

package winfs

// ListDrives reports no drives on platforms without the Windows logical
// drive model.
func ListDrives() ([]Drive, error) {
	return nil, nil
}
