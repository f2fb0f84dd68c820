package portal

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/shazow/autojoin/internal/device"
	"github.com/shazow/autojoin/wifi"
)

type configEntry struct {
	ID     int    `json:"id"`
	APName string `json:"apName"`
	APPass bool   `json:"apPass"`
}

type network struct {
	SSID           string            `json:"ssid"`
	RSSI           int               `json:"rssi"`
	EncryptionType wifi.SecurityType `json:"encryptionType"`
	Security       string            `json:"security"`
	Channel        int               `json:"channel"`
}

type scanResponse struct {
	Scanning bool      `json:"scanning"`
	Networks []network `json:"networks"`
}

type heapStats struct {
	Alloc     uint64 `json:"alloc"`
	Sys       uint64 `json:"sys"`
	HeapInuse uint64 `json:"heapInuse"`
	NumGC     uint32 `json:"numGC"`
}

type statusResponse struct {
	device.Status
	Logs []string  `json:"logs"`
	Heap heapStats `json:"heap"`
}

type addRequest struct {
	APName string `json:"apName"`
	APPass string `json:"apPass"`
}

type nameRequest struct {
	APName string `json:"apName"`
}

type idRequest struct {
	ID *int `json:"id"`
}

func (p *Portal) handleGetConfigList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds []wifi.Credential
		if !p.do(w, r, func() { creds = p.prov.Credentials() }) {
			return
		}

		res := make([]configEntry, 0, len(creds))
		for i, c := range creds {
			res = append(res, configEntry{ID: i, APName: c.SSID, APPass: c.Secret != ""})
		}
		p.jsonResponse(w, res, http.StatusOK)
	}
}

func (p *Portal) handleGetScan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			results  []wifi.ScanResult
			scanning bool
		)
		if !p.do(w, r, func() { results, scanning = p.prov.Scan() }) {
			return
		}

		results = append([]wifi.ScanResult(nil), results...)
		wifi.SortScanResults(results)
		res := scanResponse{Scanning: scanning, Networks: make([]network, 0, len(results))}
		for _, s := range results {
			res.Networks = append(res.Networks, network{
				SSID:           s.SSID,
				RSSI:           s.Signal,
				EncryptionType: s.Security,
				Security:       s.Security.String(),
				Channel:        s.Channel,
			})
		}
		p.jsonResponse(w, res, http.StatusOK)
	}
}

func (p *Portal) handleGetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var status device.Status
		if !p.do(w, r, func() { status = p.prov.Status() }) {
			return
		}

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		p.jsonResponse(w, &statusResponse{
			Status: status,
			Logs:   p.logs(),
			Heap: heapStats{
				Alloc:     mem.Alloc,
				Sys:       mem.Sys,
				HeapInuse: mem.HeapInuse,
				NumGC:     mem.NumGC,
			},
		}, http.StatusOK)
	}
}

func (p *Portal) handlePostAdd() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := addRequest{}
		if !p.decode(w, r, &req) {
			return
		}

		var err error
		if !p.do(w, r, func() { err = p.prov.AddCredential(req.APName, req.APPass) }) {
			return
		}
		if err != nil {
			p.credentialError(w, err)
			return
		}
		p.jsonMessage(w, fmt.Sprintf("added %s", req.APName))
	}
}

func (p *Portal) handleRemoveByName() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := nameRequest{}
		if !p.decode(w, r, &req) {
			return
		}

		var err error
		if !p.do(w, r, func() { err = p.prov.RemoveCredential(req.APName) }) {
			return
		}
		if err != nil {
			p.credentialError(w, err)
			return
		}
		p.jsonMessage(w, fmt.Sprintf("removed %s", req.APName))
	}
}

func (p *Portal) handleRemoveByID() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := idRequest{}
		if !p.decode(w, r, &req) {
			return
		}
		if req.ID == nil {
			p.jsonError(w, "missing id", http.StatusBadRequest)
			return
		}

		var (
			ssid string
			err  error
		)
		if !p.do(w, r, func() { ssid, err = p.prov.RemoveCredentialAt(*req.ID) }) {
			return
		}
		if err != nil {
			p.credentialError(w, err)
			return
		}
		p.jsonMessage(w, fmt.Sprintf("removed %s", ssid))
	}
}

func (p *Portal) handlePostStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		if !p.do(w, r, func() { ok = p.prov.FinishConfiguration() }) {
			return
		}
		if !ok {
			p.jsonError(w, "not in configuration mode", http.StatusConflict)
			return
		}
		p.jsonMessage(w, "configuration finished, connecting")
	}
}

func (p *Portal) handlePostConnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.do(w, r, p.prov.Connect) {
			return
		}
		p.jsonMessage(w, "connecting")
	}
}

func (p *Portal) handlePostCancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		if !p.do(w, r, func() { ok = p.prov.Cancel() }) {
			return
		}
		if !ok {
			p.jsonError(w, "no association in progress", http.StatusConflict)
			return
		}
		p.jsonMessage(w, "cancelling")
	}
}

func (p *Portal) credentialError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wifi.ErrExists):
		p.jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, wifi.ErrNotFound):
		p.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, wifi.ErrInvalid), errors.Is(err, wifi.ErrTooLarge):
		p.jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		p.log.Error("credential update failed", "error", err)
		p.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}
