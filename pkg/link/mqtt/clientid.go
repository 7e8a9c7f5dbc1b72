package mqtt

import (
	"fmt"
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const appID = "cometload"

// DefaultClientID derives a stable client id from the machine id, so a
// restarted loader replaces its previous session on the broker.
func DefaultClientID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		glog.V(1).Infof("machine id unavailable: %v", err)
		return fmt.Sprintf("%s-%d", appID, os.Getpid())
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return appID + "-" + id
}
