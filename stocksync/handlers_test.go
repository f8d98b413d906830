package stocksync

import (
	"fmt"
	"net/http"
	"testing"

	"bitbucket.org/mmdatafocus/stockverify_backend/syncerr"
)

func TestStatusForMapsErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{syncerr.Wrap(syncerr.ErrValidation, "realtime check", fmt.Errorf("item X not found")), http.StatusNotFound},
		{syncerr.Wrap(syncerr.ErrSyncConfig, "change detection", fmt.Errorf("no modified column")), http.StatusConflict},
		{syncerr.Wrap(syncerr.ErrConnection, "quantity sync", fmt.Errorf("erp unreachable")), http.StatusServiceUnavailable},
		{syncerr.Wrap(syncerr.ErrDatabase, "bulk metadata update", fmt.Errorf("write failed")), http.StatusInternalServerError},
		{fmt.Errorf("unclassified"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
