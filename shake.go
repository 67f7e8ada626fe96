package main

import (
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320 // mobile-friendly size

// joinURL builds the link a phone lands on after scanning the room's QR
// code. --base-url wins when set; otherwise the scheme and host are taken
// from the incoming request (respecting X-Forwarded-Proto).
func joinURL(cfg *Config, r *http.Request, roomID string) string {
	base := cfg.baseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}

	return base + cfg.prefix + "/mobile.html?room=" + roomID
}

// createRoomHandler allocates a room and answers with its id plus a QR
// code of the join link, inlined as a PNG data url so the host page can
// drop it straight into an <img>.
func createRoomHandler(cfg *Config, store *RoomStore, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		rm := store.create(cfg)

		png, err := qrcode.Encode(joinURL(cfg, r, rm.id), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)

		resp := CreateRoomResponse{
			RoomID: rm.id,
			QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			errs <- err

			return
		}

		logf(cfg, "ROOMS: Created room %s for %s", rm.id, realIP(r))
	}
}

// qrHandler serves the same QR code as a plain PNG, for displays that want
// to link it directly.
func qrHandler(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if _, ok := store.get(roomID); !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(joinURL(cfg, r, roomID), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// ---- Static file paths ----

//go:embed shake/host.html
var hostHTML []byte

//go:embed shake/mobile.html
var mobileHTML []byte

//go:embed shake/app.css
var shakeCSS []byte

//go:embed shake/host.js
var hostJS []byte

//go:embed shake/mobile.js
var mobileJS []byte

func staticHandler(cfg *Config, data []byte, contentType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(data)
	}
}

// registerShakeGame sets up routes so that:
//   - $prefix/                → host display (creates a room, shows the QR)
//   - $prefix/mobile.html     → phone client (?room=:roomid)
//   - $prefix/api/rooms       → POST, allocate a room
//   - $prefix/rooms/:roomid/qr → PNG QR code for the join link
//   - $prefix/ws              → shared WebSocket endpoint
func registerShakeGame(cfg *Config, store *RoomStore, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/", staticHandler(cfg, hostHTML, "text/html; charset=utf-8"))
	mux.GET(cfg.prefix+"/mobile.html", staticHandler(cfg, mobileHTML, "text/html; charset=utf-8"))

	mux.GET(cfg.prefix+"/assets/app.css", staticHandler(cfg, shakeCSS, "text/css; charset=utf-8"))
	mux.GET(cfg.prefix+"/assets/host.js", staticHandler(cfg, hostJS, "text/javascript; charset=utf-8"))
	mux.GET(cfg.prefix+"/assets/mobile.js", staticHandler(cfg, mobileJS, "text/javascript; charset=utf-8"))

	mux.POST(cfg.prefix+"/api/rooms", createRoomHandler(cfg, store, errs))
	mux.GET(cfg.prefix+"/rooms/:roomid/qr", qrHandler(cfg, store))

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, store))
}
