// Package tts voices announcements through espeak-ng.
package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

static int
wes_espeak_init(void)
{
	return espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0);
}

static int
wes_espeak_say(const char *text, const char *voice, int rate)
{
	if (!text)
	{ return -1; }

	espeak_VOICE specs = { .languages = voice };
	espeak_SetVoiceByProperties(&specs);
	if (rate > 0)
	{ espeak_SetParameter(espeakRATE, rate, 0); }

	espeak_Synth(text, strlen(text) + 1, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL);
	return espeak_Synchronize();
}

static void
wes_espeak_cancel(void)
{
	espeak_Cancel();
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

// Espeak implements the engine's Speaker. Announcements are serialized; a
// cancelled context interrupts the current one.
type Espeak struct {
	voice string
	rate  int

	mu       sync.Mutex
	initOnce sync.Once
	initErr  error
}

// NewEspeak uses voice as a language tag ("en", "en-us") and rate in words
// per minute; zero keeps the espeak default.
func NewEspeak(voice string, rate int) *Espeak {
	if voice == "" {
		voice = "en"
	}
	return &Espeak{voice: voice, rate: rate}
}

func (e *Espeak) Say(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	e.initOnce.Do(func() {
		if rc := C.wes_espeak_init(); rc < 0 {
			e.initErr = fmt.Errorf("espeak_Initialize failed: %d", int(rc))
		}
	})
	if e.initErr != nil {
		return e.initErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- speak(text, e.voice, e.rate)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		C.wes_espeak_cancel()
		<-done
		return ctx.Err()
	}
}

func speak(text, voice string, rate int) error {
	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	cvoice := C.CString(voice)
	defer C.free(unsafe.Pointer(cvoice))

	if rc := C.wes_espeak_say(ctext, cvoice, C.int(rate)); rc != 0 {
		return fmt.Errorf("espeak synth failed: %d", int(rc))
	}
	return nil
}
