//go:build integration && !windows

package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/figpresence/internal/config"
	"github.com/eliteGoblin/focusd/figpresence/internal/discord"
	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
	"github.com/eliteGoblin/focusd/figpresence/internal/infra"
	"github.com/eliteGoblin/focusd/figpresence/internal/policy"
)

var _ = Describe("Presence daemon", func() {
	var h *harness

	Describe("broadcasting the open file", func() {
		BeforeEach(func() {
			h = newHarness(0)
		})

		Context("when Figma has a known file open", func() {
			BeforeEach(func() {
				h.figma.open("Mockup v2 – Figma")
				h.start()
			})

			It("should show the file with a link to it", func() {
				Eventually(h.details).Should(Equal("Mockup v2"))

				activity := h.lastActivity()
				Expect(activity.State).To(Equal("Designing in Figma"))
				Expect(activity.Timestamps).NotTo(BeNil())
				Expect(activity.Buttons).To(ConsistOf(discord.Button{
					Label: "View in Figma",
					URL:   "https://www.figma.com/file/abc123",
				}))
				Expect(h.discord.Handshakes()).To(ContainElement(config.DefaultClientID))
			})

			It("should follow the user to another file", func() {
				Eventually(h.details).Should(Equal("Mockup v2"))

				h.figma.open("Onboarding flow - Figma")
				Eventually(h.details).Should(Equal("Onboarding flow"))
				Expect(h.lastActivity().Buttons[0].URL).To(Equal("https://www.figma.com"))
			})

			It("should go idle when Figma quits", func() {
				Eventually(h.details).Should(Equal("Mockup v2"))

				h.figma.quit()
				Eventually(h.details).Should(Equal("Idle"))
				Expect(h.lastActivity().Buttons).To(BeEmpty())
			})
		})

		Context("when Figma shows its file browser", func() {
			It("should report a generic file", func() {
				h.figma.open("Figma")
				h.start()

				Eventually(h.details).Should(Equal(policy.GenericFileName))
			})
		})
	})

	Describe("privacy settings", func() {
		BeforeEach(func() {
			h = newHarness(0)
			h.figma.open("Mockup v2 – Figma")
			h.start()
			Eventually(h.details).Should(Equal("Mockup v2"))
		})

		It("should hide the file name", func() {
			Expect(h.store.Set(infra.SettingHideFilename, "true")).To(Succeed())

			Eventually(h.details).Should(Equal("Working on a file"))
			Expect(h.lastActivity().Buttons).To(HaveLen(1))
		})

		It("should drop the button", func() {
			Expect(h.store.Set(infra.SettingHideButtons, "true")).To(Succeed())

			Eventually(func() []discord.Button {
				return h.lastActivity().Buttons
			}).Should(BeEmpty())
			Expect(h.details()).To(Equal("Mockup v2"))
		})

		It("should clear the presence when disabled and restore it when enabled", func() {
			Expect(h.store.Set(infra.SettingEnabled, "false")).To(Succeed())
			Eventually(h.lastActivity).Should(BeNil())

			Expect(h.store.Set(infra.SettingEnabled, "true")).To(Succeed())
			Eventually(h.details).Should(Equal("Mockup v2"))
		})
	})

	Describe("rate limiting", func() {
		It("should drop a change that arrives during the cooldown", func() {
			h = newHarness(time.Minute)
			h.figma.open("Mockup v2 – Figma")
			h.start()
			Eventually(h.details).Should(Equal("Mockup v2"))

			h.figma.open("Onboarding flow - Figma")
			Consistently(h.details, 500*time.Millisecond).Should(Equal("Mockup v2"))
			Expect(h.discord.Activities()).To(HaveLen(1))
		})
	})

	Describe("connection lifecycle", func() {
		BeforeEach(func() {
			h = newHarness(0)
			h.figma.open("Mockup v2 – Figma")
		})

		It("should reconnect and republish after Discord drops the connection", func() {
			h.start()
			Eventually(h.details).Should(Equal("Mockup v2"))
			sent := len(h.discord.Activities())

			h.discord.Kick()
			Eventually(func() int { return len(h.discord.Handshakes()) }).Should(BeNumerically(">=", 2))
			Eventually(func() int { return len(h.discord.Activities()) }).Should(BeNumerically(">", sent))
			Expect(h.details()).To(Equal("Mockup v2"))
		})

		It("should reconnect on request", func() {
			h.start()
			Eventually(h.details).Should(Equal("Mockup v2"))

			h.engine.RequestReconnect()
			Eventually(func() int { return len(h.discord.Handshakes()) }).Should(BeNumerically(">=", 2))
		})

		It("should answer pings", func() {
			h.start()
			Eventually(h.details).Should(Equal("Mockup v2"))

			Expect(h.discord.Ping()).To(Succeed())
			Eventually(h.discord.Pongs).Should(Equal(1))
		})

		It("should stay disconnected while the client id is rejected", func() {
			h.discord.RejectClientID(config.DefaultClientID)
			h.start()

			Eventually(func() int { return len(h.discord.Handshakes()) }).Should(BeNumerically(">=", 2))
			Expect(h.discord.Activities()).To(BeEmpty())
			Expect(h.engine.ConnectionState()).NotTo(Equal(domain.Connected))

			By("switching to another client id in settings")
			Expect(h.store.Set(infra.SettingClientID, "1234567890")).To(Succeed())
			Eventually(h.details).Should(Equal("Mockup v2"))
			Expect(h.discord.Handshakes()).To(ContainElement("1234567890"))
		})
	})

	Describe("status file", func() {
		BeforeEach(func() {
			h = newHarness(0)
			h.figma.open("Mockup v2 – Figma")
			h.start()
		})

		It("should report the connection and the open file", func() {
			Eventually(func() string {
				entry, err := h.status.Read()
				if err != nil || entry == nil || entry.CurrentFile == nil {
					return ""
				}
				return entry.ConnectionState + " " + entry.CurrentFile.Identity
			}).Should(Equal("connected abc123"))

			entry, err := h.status.Read()
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.AppVersion).To(Equal("integration"))
			Expect(entry.Enabled).To(BeTrue())
			Eventually(func() string {
				e, _ := h.status.Read()
				if e == nil {
					return ""
				}
				return e.LastPublish
			}).Should(Equal("sent"))
		})

		It("should be removed when the daemon stops", func() {
			Eventually(func() bool {
				entry, _ := h.status.Read()
				return entry != nil
			}).Should(BeTrue())

			Expect(h.stop()).To(Succeed())

			entry, err := h.status.Read()
			Expect(err).NotTo(HaveOccurred())
			Expect(entry).To(BeNil())
		})
	})
})
