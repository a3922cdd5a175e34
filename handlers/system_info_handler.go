package handlers

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"slot-bot/bot"
	"slot-bot/utils"
)

func SystemInfoHandler(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cpuCount, _ := cpu.CountsWithContext(ctx, true)
	cpuUsage := "n/a"
	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		cpuUsage = fmt.Sprintf("%.1f%%", cpuPercent[0])
	}

	memory := "n/a"
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memory = fmt.Sprintf("%.1f%% (%d MB / %d MB)", vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024)
	}

	osVersion, kernel := "n/a", "n/a"
	if hostInfo, err := host.InfoWithContext(ctx); err == nil {
		osVersion = fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion)
		kernel = hostInfo.KernelVersion
	}

	storeSize := "n/a"
	if size, err := b.StoreSize(); err == nil {
		storeSize = fmt.Sprintf("%.1f KB", float64(size)/1024)
	}

	slotCount, expiringSoon := "n/a", "n/a"
	if slots, err := b.Service.List(ctx); err == nil {
		slotCount = fmt.Sprintf("%d", len(slots))
	}
	if soon, err := b.Service.ExpiringWithin(ctx, 24*time.Hour); err == nil {
		expiringSoon = fmt.Sprintf("%d", len(soon))
	}

	embed := &discordgo.MessageEmbed{
		Title: "System information",
		Color: 0x5865F2, // Discord Blurple
		Fields: []*discordgo.MessageEmbedField{
			{Name: "💻 OS", Value: osVersion, Inline: true},
			{Name: "🔧 Kernel", Value: kernel, Inline: true},
			{Name: "🐹 Go", Value: runtime.Version(), Inline: true},
			{Name: "🔼 CPUs", Value: fmt.Sprintf("%d", cpuCount), Inline: true},
			{Name: "🔥 CPU usage", Value: cpuUsage, Inline: true},
			{Name: "🧠 Memory", Value: memory, Inline: true},
			{Name: "🗃️ Store size", Value: storeSize, Inline: true},
			{Name: "⏱️ WebSocket latency", Value: s.HeartbeatLatency().String(), Inline: true},
			{Name: "🚀 Goroutines", Value: fmt.Sprintf("%d", runtime.NumGoroutine()), Inline: true},
			{Name: "🎮 Slots", Value: slotCount, Inline: true},
			{Name: "⏳ Expiring within 24h", Value: expiringSoon, Inline: true},
			{Name: "🔁 Sweep interval", Value: b.GetConfig().SweepInterval.String(), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("System monitor・today at %s", time.Now().Format("15:04")),
		},
	}

	utils.Respond(s, i, utils.Reply{Embed: embed, Ephemeral: true})
}
